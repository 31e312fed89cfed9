package sink

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Iron-Ham/prism/internal/broadcast"
	"github.com/Iron-Ham/prism/internal/config"
	"github.com/Iron-Ham/prism/internal/logging"
)

const (
	connectTimeout = 5 * time.Second
	disconnectMs   = 250
)

// Publisher is the part of an MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes every frame to one topic. Send returns once the broker
// has accepted the message at the configured QoS.
type MQTT struct {
	pub    Publisher
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTT wraps an existing publisher.
func NewMQTT(pub Publisher, topic string, qos byte) *MQTT {
	return &MQTT{pub: pub, topic: topic, qos: qos}
}

// DialMQTT connects to the broker described by cfg. The client reconnects
// on its own after a lost connection; frames sent meanwhile fail and the
// queue drops the sink.
func DialMQTT(cfg config.MQTTSinkConfig, logger *logging.Logger) (*MQTT, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.With("sink", "mqtt", "broker", cfg.Broker)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to MQTT broker", "client_id", cfg.ClientID)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err.Error())
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timeout connecting to mqtt broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", err)
	}

	m := NewMQTT(client, cfg.Topic, byte(cfg.QoS))
	m.client = client
	return m, nil
}

// ID returns the consumer id.
func (m *MQTT) ID() string { return "mqtt:" + m.topic }

// Send publishes f and waits for the publish token.
func (m *MQTT) Send(ctx context.Context, f broadcast.Frame) error {
	token := m.pub.Publish(m.topic, m.qos, false, f.Data)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s: %w", m.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects a client created by DialMQTT.
func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectMs)
	}
	return nil
}
