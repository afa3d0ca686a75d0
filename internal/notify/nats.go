package notify

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher is the part of *nats.Conn the NATS transport needs.
type NATSPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSTransport publishes to a NATS server. Publish is fire-and-forget; the
// connection buffers while reconnecting.
type NATSTransport struct {
	conn NATSPublisher
}

func NewNATSTransport(conn NATSPublisher) *NATSTransport {
	return &NATSTransport{conn: conn}
}

func (t *NATSTransport) Name() string { return "nats" }

func (t *NATSTransport) Send(topic string, payload []byte) error {
	return t.conn.Publish(Subject(topic), payload)
}

// Subject maps an MQTT-style topic to a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// ConnectNATS dials the NATS server and reconnects forever.
func ConnectNATS(cfg Config) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name(cfg.ClientID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("notify: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("notify: reconnected to NATS %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS %s: %w", cfg.NATSURL, err)
	}
	return conn, nil
}

// CloseNATS flushes buffered messages before closing conn.
func CloseNATS(conn *nats.Conn, timeout time.Duration) {
	if err := conn.FlushTimeout(timeout); err != nil {
		log.Printf("notify: NATS flush failed: %v", err)
	}
	conn.Close()
}
