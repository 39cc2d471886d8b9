package monitor

import (
	"time"

	"github.com/nerrad567/plcbridge/internal/device"
)

// Fanout publishes device updates to every connected sink.
type Fanout struct {
	sinks  []Sink
	codec  Codec
	logger Logger
}

// NewFanout creates a Fanout. A nil codec means JSONCodec.
func NewFanout(codec Codec, logger Logger, sinks ...Sink) *Fanout {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Fanout{sinks: sinks, codec: codec, logger: logger}
}

// Publish encodes each device once and sends it to each connected sink.
// It returns the number of successful sends. Failures on one sink do not
// affect the others.
func (f *Fanout) Publish(devices []device.Device, at time.Time) int {
	if len(devices) == 0 || len(f.sinks) == 0 {
		return 0
	}

	sent := 0
	for _, d := range devices {
		payload, err := f.codec.EncodePublish(NewPublishMessage(d, at))
		if err != nil {
			f.logError("encoding device update", "address", d.Address, "error", err)
			continue
		}

		for _, s := range f.sinks {
			if !s.IsConnected() {
				continue
			}
			topic := d.Topic(s.Name())
			if topic == "" {
				topic = s.Topic(d.Address)
			}
			if err := s.Publish(topic, payload); err != nil {
				f.logError("publishing device update",
					"bus", s.Name(),
					"topic", topic,
					"error", err,
				)
				continue
			}
			sent++
		}
	}
	return sent
}

// State reports the connection state of the ZeroMQ and MQTT sinks.
func (f *Fanout) State() (zmq, mqtt bool) {
	for _, s := range f.sinks {
		switch s.Name() {
		case BusZMQ:
			zmq = s.IsConnected()
		case BusMQTT:
			mqtt = s.IsConnected()
		}
	}
	return zmq, mqtt
}

// Close closes every sink and returns the first error.
func (f *Fanout) Close() error {
	var first error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *Fanout) logError(msg string, keysAndValues ...any) {
	if f.logger != nil {
		f.logger.Error(msg, keysAndValues...)
	}
}
