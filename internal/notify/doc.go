// Package notify publishes bandit contact events to an MQTT broker or a NATS
// server.
//
// Manager callbacks run on the frame ingestion path, so handlers only
// enqueue. A single Run loop per Sink owns its transport and publishes in
// order; when the queue is full new events are dropped and counted.
//
// MQTT topics are <prefix>/<bandit uuid>/<event type>. NATS subjects are the
// same path with "/" replaced by ".".
package notify
