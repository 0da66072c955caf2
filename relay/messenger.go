package relay

import (
	"context"
	"fmt"

	"github.com/avast/retry-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig represents the config of the Messenger
type MQTTConfig struct {
	Tag string `yaml:"tag"`
	DSN string `yaml:"dsn"`
	TLS bool   `yaml:"tls"`
	QoS byte   `yaml:"qos"`
}

// MessageHandler handles a single inbound message on a subscribed topic.
// An error returned by the handler is reported by the dispatching layer;
// the handler itself publishes nothing on failure.
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

// Transport is the messaging fabric the relay publishes to and receives
// inbound messages from
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler MessageHandler) error
}

// Messenger represents an MQTT client
type Messenger struct {
	config MQTTConfig
	client mqtt.Client
	logger *zap.SugaredLogger
}

// BrokerURL returns the URL of the configured MQTT broker
func (m *Messenger) BrokerURL() string {
	if m.config.TLS == true {
		return fmt.Sprintf("ssl://%s", m.config.DSN)
	}

	return fmt.Sprintf("tcp://%s", m.config.DSN)
}

// Connect with the configured MQTT broker
func (m *Messenger) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.BrokerURL())
	opts.SetClientID(fmt.Sprintf("mqtt-telemetry-relay-%s", m.config.Tag))

	m.client = mqtt.NewClient(opts)

	err := retry.Do(
		func() error {
			token := m.client.Connect()
			token.Wait()

			if err := token.Error(); err != nil {
				m.logger.Warnf("messenger: %s", err)

				return err
			}

			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("messenger: failed to connect to %s", m.config.DSN)
	}

	m.logger.Infof("messenger: connection established")

	return nil
}

// Publish a payload to the given topic. Completion is awaited so a
// transport failure surfaces to the caller.
func (m *Messenger) Publish(ctx context.Context, topic string, payload []byte) error {
	token := m.client.Publish(topic, m.config.QoS, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("messenger: publish to %q: %s", topic, err)
	}

	return nil
}

// Subscribe to the given topic. The handler is invoked for every inbound
// message; a handler error is logged and the message discarded.
func (m *Messenger) Subscribe(topic string, handler MessageHandler) error {
	token := m.client.Subscribe(topic, m.config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(context.Background(), msg.Topic(), msg.Payload()); err != nil {
			m.logger.Errorf("messenger: handler for %q: %s", msg.Topic(), err)
		}
	})
	token.Wait()

	if err := token.Error(); err != nil {
		m.logger.Errorf("messenger: %s", err)

		return fmt.Errorf("messenger: failed to subscribe to %q", topic)
	}

	m.logger.Infof("messenger: subscribed to topic %q", topic)

	return nil
}

// Shutdown the Messenger
func (m *Messenger) Shutdown() error {
	m.logger.Infof("messenger: shutting down")

	if m.client == nil || !m.client.IsConnected() {
		m.logger.Infof("messenger: shutdown OK")

		return nil
	}

	m.client.Disconnect(250)

	m.logger.Infof("messenger: shutdown OK")

	return nil
}

// NewMessenger creates a new Messenger
func NewMessenger(config MQTTConfig, logger *zap.SugaredLogger) *Messenger {
	return &Messenger{
		config: config,
		logger: logger,
	}
}
