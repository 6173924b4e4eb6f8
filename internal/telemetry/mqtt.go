package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTOptions configures the MQTT status publisher
type MQTTOptions struct {
	Broker   string // tcp://host:port
	Topic    string
	ClientID string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// MQTTSink publishes snapshots as JSON to one topic
type MQTTSink struct {
	client mqtt.Client
	opts   MQTTOptions
	logger *logrus.Logger
}

// NewMQTTSink connects to the broker; reconnection is left to the paho client.
func NewMQTTSink(opts MQTTOptions, logger *logrus.Logger) (*MQTTSink, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectTimeout(withDefaultTimeout(opts.Timeout))
	clientOpts.OnConnect = func(mqtt.Client) {
		logger.WithField("broker", opts.Broker).Info("Connected to MQTT broker")
	}
	clientOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	}

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(withDefaultTimeout(opts.Timeout)) {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}

	return newMQTTSink(client, opts, logger), nil
}

func newMQTTSink(client mqtt.Client, opts MQTTOptions, logger *logrus.Logger) *MQTTSink {
	if logger == nil {
		logger = logrus.New()
	}
	opts.Timeout = withDefaultTimeout(opts.Timeout)
	return &MQTTSink{client: client, opts: opts, logger: logger}
}

func (m *MQTTSink) Publish(_ context.Context, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	token := m.client.Publish(m.opts.Topic, m.opts.QoS, m.opts.Retained, payload)
	if !token.WaitTimeout(m.opts.Timeout) {
		return fmt.Errorf("mqtt publish to %s: timeout", m.opts.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", m.opts.Topic, err)
	}

	m.logger.WithField("topic", m.opts.Topic).Trace("Published status")
	return nil
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}

func withDefaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}
