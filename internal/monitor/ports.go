package monitor

import (
	"context"
	"time"
)

// Bus names used as device topic cache keys.
const (
	BusMQTT = "mqtt"
	BusZMQ  = "zmq"
)

// Logger is the structured logger the service writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Sink is an outbound bus.
type Sink interface {
	// Name returns the bus name (BusMQTT or BusZMQ).
	Name() string
	// Topic returns the state topic for a device address.
	Topic(address string) string
	IsConnected() bool
	Publish(topic string, payload []byte) error
	Close() error
}

// Source is an inbound bus. Delivery is push-based: the source calls
// Service.HandleCommand from its own goroutine.
type Source interface {
	Close() error
}

// Trigger sends a command to the barcode reader.
type Trigger interface {
	SendTrigger(ctx context.Context, command string) error
	Close() error
}

// Verdict is the outcome of one write command.
type Verdict string

// Verdicts recorded for write commands.
const (
	VerdictRejected Verdict = "rejected"
	VerdictWritten  Verdict = "written"
	VerdictFailed   Verdict = "failed"
	VerdictDropped  Verdict = "dropped"
)

// CommandEvent describes one handled write command.
type CommandEvent struct {
	// Source is the bus name, or "manual" for WriteDevice.
	Source  string
	Topic   string
	Address string
	// Value is nil when the payload could not be decoded.
	Value   *int
	Verdict Verdict
	Reason  string
	At      time.Time
}

// SourceManual marks commands issued through WriteDevice.
const SourceManual = "manual"

// CommandRecorder persists command events. It must not block.
type CommandRecorder interface {
	RecordCommand(ev CommandEvent)
}

// Metrics receives operational measurements. It must not block.
type Metrics interface {
	RecordCycle(duration time.Duration, devices, changed int)
	RecordReconnect(result string, attempt int)
	RecordCommand(source, verdict string)
}
