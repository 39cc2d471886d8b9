package mqtt

import (
	"fmt"
)

// BusName identifies MQTT in device topic caches and signals.
const BusName = "mqtt"

// Sink publishes device state on the publishing connection.
type Sink struct {
	client *Client
	qos    byte
}

// NewSink returns a Sink over a connection opened with Connect.
func NewSink(client *Client) *Sink {
	return &Sink{client: client, qos: byte(client.cfg.QoS)}
}

// Name returns the bus name.
func (s *Sink) Name() string {
	return BusName
}

// Topic returns "{prefix}/{address}".
func (s *Sink) Topic(address string) string {
	return s.client.topics.DeviceState(address)
}

// IsConnected reports the broker connection state.
func (s *Sink) IsConnected() bool {
	return s.client.IsConnected()
}

// Publish sends one device state message, not retained.
func (s *Sink) Publish(topic string, payload []byte) error {
	return s.client.Publish(topic, payload, s.qos, false)
}

// Close publishes the graceful offline status and disconnects.
func (s *Sink) Close() error {
	return s.client.Close()
}

// CommandSource delivers "{prefix}/+/set" messages from the subscriber
// connection to a handler.
type CommandSource struct {
	client *Client
	topic  string
}

// SubscribeCommands subscribes client to the command wildcard.
func SubscribeCommands(client *Client, handler MessageHandler) (*CommandSource, error) {
	topic := client.topics.CommandWildcard()
	if err := client.Subscribe(topic, byte(client.cfg.QoS), handler); err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return &CommandSource{client: client, topic: topic}, nil
}

// Topic returns the subscribed wildcard.
func (s *CommandSource) Topic() string {
	return s.topic
}

// IsConnected reports the subscriber connection state.
func (s *CommandSource) IsConnected() bool {
	return s.client.IsConnected()
}

// Close unsubscribes and disconnects the subscriber connection.
func (s *CommandSource) Close() error {
	if s.client.IsConnected() {
		_ = s.client.Unsubscribe(s.topic)
	}
	return s.client.Close()
}
