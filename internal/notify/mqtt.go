package notify

import (
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// message within the publish timeout.
var ErrPublishTimeout = errors.New("publish timed out")

// Publisher is the part of mqtt.Client the MQTT transport needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTTransport publishes to an MQTT broker and waits for each token.
type MQTTTransport struct {
	pub     Publisher
	qos     byte
	timeout time.Duration
}

// NewMQTTTransport wraps pub. A non-positive timeout defaults to 5s.
func NewMQTTTransport(pub Publisher, qos byte, timeout time.Duration) *MQTTTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTTransport{pub: pub, qos: qos, timeout: timeout}
}

func (t *MQTTTransport) Name() string { return "mqtt" }

func (t *MQTTTransport) Send(topic string, payload []byte) error {
	token := t.pub.Publish(topic, t.qos, false, payload)
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("%w after %s", ErrPublishTimeout, t.timeout)
	}
	return token.Error()
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(cfg Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("notify: connected to MQTT broker %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("notify: connection lost: %v, will attempt to reconnect", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}
