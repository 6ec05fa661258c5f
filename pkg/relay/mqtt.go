// Package relay forwards telemetry lines to network subscribers.
package relay

import (
	"bytes"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/potservo/pkg/config"
)

const connectTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the relay needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes every written telemetry line as one message. Publishing is
// fire-and-forget so a slow broker never stalls the telemetry task.
type MQTT struct {
	client publisher
	topic  string
	owned  mqtt.Client
}

// NewMQTT wraps an existing client.
func NewMQTT(client publisher, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg config.MQTTConfig, logger *log.Logger) (*MQTT, error) {
	if logger == nil {
		logger = log.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectTimeout)
	opts.OnConnect = func(mqtt.Client) {
		logger.Printf("Connected to MQTT broker %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Printf("MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// ConnectRetry keeps trying in the background.
		logger.Printf("MQTT broker %s not reachable yet, retrying in background", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	m := NewMQTT(client, cfg.Topic)
	m.owned = client
	return m, nil
}

// Write publishes p without its line terminator.
func (m *MQTT) Write(p []byte) (int, error) {
	payload := bytes.TrimRight(p, "\r\n")
	// The encoder reuses its buffer; paho keeps the slice until sent.
	m.client.Publish(m.topic, 0, false, bytes.Clone(payload))
	return len(p), nil
}

// Close disconnects a client created by DialMQTT.
func (m *MQTT) Close() error {
	if m.owned != nil {
		m.owned.Disconnect(250)
	}
	return nil
}
