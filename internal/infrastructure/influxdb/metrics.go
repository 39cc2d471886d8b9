package influxdb

import (
	"time"
)

// Measurement names written by Metrics.
const (
	MeasurementPollCycle = "poll_cycle"
	MeasurementReconnect = "plc_reconnect"
	MeasurementCommand   = "write_command"
)

// Metrics records the poll loop's operational measurements. It implements
// monitor.Metrics. Device values are never written.
type Metrics struct {
	client *Client
	tags   map[string]string
	now    func() time.Time
}

// NewMetrics returns Metrics writing through client. Every point carries
// the given instance tag.
func NewMetrics(client *Client, instance string) *Metrics {
	return &Metrics{
		client: client,
		tags:   map[string]string{"instance": instance},
		now:    time.Now,
	}
}

func (m *Metrics) tagsWith(kv ...string) map[string]string {
	tags := make(map[string]string, len(m.tags)+len(kv)/2)
	for k, v := range m.tags {
		tags[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		tags[kv[i]] = kv[i+1]
	}
	return tags
}

// RecordCycle writes one poll cycle's duration and change count.
func (m *Metrics) RecordCycle(duration time.Duration, devices, changed int) {
	m.client.WritePointWithTime(MeasurementPollCycle, m.tagsWith(), map[string]any{
		"duration_ms": float64(duration.Microseconds()) / 1000,
		"devices":     devices,
		"changed":     changed,
	}, m.now())
}

// RecordReconnect writes one automatic reconnect attempt.
func (m *Metrics) RecordReconnect(result string, attempt int) {
	m.client.WritePointWithTime(MeasurementReconnect, m.tagsWith("result", result), map[string]any{
		"attempt": attempt,
	}, m.now())
}

// RecordCommand counts one write command verdict.
func (m *Metrics) RecordCommand(source, verdict string) {
	m.client.WritePointWithTime(MeasurementCommand, m.tagsWith("source", source, "verdict", verdict), map[string]any{
		"count": 1,
	}, m.now())
}
