package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nzymedefense/nzyme/internal/bandits"
	"github.com/nzymedefense/nzyme/internal/config"
	"github.com/nzymedefense/nzyme/internal/monitoring"
	"github.com/nzymedefense/nzyme/internal/timeutil"
)

// Event types.
const (
	EventInitialContact = "initial_contact"
	EventTrace          = "trace"
	EventContactRetired = "contact_retired"
)

// Event is the JSON payload of every published message.
type Event struct {
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	BanditUUID  string    `json:"bandit_uuid"`
	BanditName  string    `json:"bandit_name"`
	ContactUUID string    `json:"contact_uuid,omitempty"`
	Node        string    `json:"node,omitempty"`
	Role        string    `json:"role,omitempty"`
	Probe       string    `json:"probe,omitempty"`
	Signal      *int      `json:"signal,omitempty"`
	Channel     *int      `json:"channel,omitempty"`
	FrameCount  int64     `json:"frame_count,omitempty"`
	FirstSeen   time.Time `json:"first_seen,omitzero"`
	LastSeen    time.Time `json:"last_seen,omitzero"`
}

// Transport delivers one encoded event.
type Transport interface {
	Name() string
	Send(topic string, payload []byte) error
}

// Config controls publishing.
type Config struct {
	Broker         string // tcp://host:port
	NATSURL        string // nats://host:port
	ClientID       string
	TopicPrefix    string
	QoS            byte
	PublishTimeout time.Duration
	QueueSize      int
	PublishTraces  bool // per-frame traces are high volume
}

// ConfigFromSettings builds a Config from loaded settings.
func ConfigFromSettings(cfg *config.BanditsConfig) Config {
	return Config{
		Broker:         cfg.GetMQTTBroker(),
		NATSURL:        cfg.GetNATSURL(),
		ClientID:       "nzyme-bandits-" + cfg.GetNodeName(),
		TopicPrefix:    cfg.GetMQTTTopicPrefix(),
		QoS:            1,
		PublishTimeout: 5 * time.Second,
		QueueSize:      1000,
		PublishTraces:  false,
	}
}

type message struct {
	topic   string
	payload []byte
}

// Sink turns manager callbacks into messages on one transport.
type Sink struct {
	tr    Transport
	cfg   Config
	clock timeutil.Clock
	queue chan message
	logf  func(format string, v ...interface{})

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// SinkStats counts messages by outcome.
type SinkStats struct {
	Published int64
	Dropped   int64
	Failed    int64
}

// NewSink returns a Sink publishing through tr. Call Run to start it.
func NewSink(tr Transport, cfg Config, clock timeutil.Clock) *Sink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Sink{
		tr:    tr,
		cfg:   cfg,
		clock: clock,
		queue: make(chan message, cfg.QueueSize),
		logf:  monitoring.Prefixed("notify/" + tr.Name()),
	}
}

// Attach registers the sink's handlers on m.
func (s *Sink) Attach(m *bandits.Manager) {
	m.OnInitialContact(s.HandleInitialContact)
	m.OnContactRetired(s.HandleRetired)
	if s.cfg.PublishTraces {
		m.OnBanditTrace(s.HandleTrace)
	}
}

// HandleInitialContact publishes the opening of a contact.
func (s *Sink) HandleInitialContact(b *bandits.Bandit, c bandits.Contact) {
	ev := contactEvent(EventInitialContact, c)
	ev.Timestamp = c.FirstSeen
	ev.BanditName = b.Name
	s.enqueue(ev)
}

// HandleTrace publishes a single bandit hit.
func (s *Sink) HandleTrace(b *bandits.Bandit, signal int, channel int) {
	s.enqueue(Event{
		Type:       EventTrace,
		Timestamp:  s.clock.Now(),
		BanditUUID: b.UUID.String(),
		BanditName: b.Name,
		Signal:     &signal,
		Channel:    &channel,
	})
}

// HandleRetired publishes the end of a contact.
func (s *Sink) HandleRetired(c bandits.Contact) {
	ev := contactEvent(EventContactRetired, c)
	ev.Timestamp = s.clock.Now()
	s.enqueue(ev)
}

func contactEvent(typ string, c bandits.Contact) Event {
	signal := c.LastSignal
	return Event{
		Type:        typ,
		BanditUUID:  c.BanditUUID.String(),
		BanditName:  c.BanditName,
		ContactUUID: c.UUID.String(),
		Node:        c.Source.Node,
		Role:        string(c.Source.Role),
		Probe:       c.Source.Name,
		Signal:      &signal,
		FrameCount:  c.FrameCount,
		FirstSeen:   c.FirstSeen,
		LastSeen:    c.LastSeen,
	}
}

// Topic returns the topic an event is published to.
func (s *Sink) Topic(ev Event) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.TopicPrefix, ev.BanditUUID, ev.Type)
}

func (s *Sink) enqueue(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logf("failed to encode %s event: %v", ev.Type, err)
		s.failed.Add(1)
		return
	}
	select {
	case s.queue <- message{topic: s.Topic(ev), payload: payload}:
	default:
		if s.dropped.Add(1) == 1 {
			s.logf("queue full, dropping events")
		}
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// already queued.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg := <-s.queue:
					s.publish(msg)
				default:
					return
				}
			}
		case msg := <-s.queue:
			s.publish(msg)
		}
	}
}

func (s *Sink) publish(msg message) {
	if err := s.tr.Send(msg.topic, msg.payload); err != nil {
		s.failed.Add(1)
		s.logf("publish to %s failed: %v", msg.topic, err)
		return
	}
	s.published.Add(1)
}

// Name returns the transport name.
func (s *Sink) Name() string {
	return s.tr.Name()
}

// Stats returns message counters.
func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}
