package monitor

import (
	"errors"
	"testing"

	"github.com/nerrad567/plcbridge/internal/plc"
)

func TestParseCommandTopic(t *testing.T) {
	tests := []struct {
		topic   string
		want    string
		wantErr error
	}{
		{"plc/D100/set", "D100", nil},
		{"site/line1/plc/M0/set", "M0", nil},
		{"plc/D100", "", ErrNotCommandTopic},
		{"plc/D100/get", "", ErrNotCommandTopic},
		{"D100/set", "", ErrNotCommandTopic},
		{"set", "", ErrNotCommandTopic},
		{"plc//set", "", ErrEmptyAddress},
		{"plc/ /set", " ", nil},
		{"plc/ D0/set", " D0", nil},
		{"plc/D0 /set", "D0 ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := ParseCommandTopic(tt.topic)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseCommandTopic(%q) error = %v, want %v", tt.topic, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCommandTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestHandleCommand_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"not a command", "plc/D0", `{"value":1}`, ErrNotCommandTopic},
		{"empty address", "plc//set", `{"value":1}`, ErrEmptyAddress},
		{"not whitelisted", "plc/D999/set", `{"value":1}`, ErrUnknownAddress},
		{"padded address", "plc/ D0/set", `{"value":1}`, ErrUnknownAddress},
		{"bad json", "plc/D0/set", `{value:1}`, ErrMalformedCommand},
		{"missing value", "plc/D0/set", `{}`, ErrMalformedCommand},
		{"string value", "plc/D0/set", `{"value":"1"}`, ErrMalformedCommand},
		{"float value", "plc/D0/set", `{"value":1.5}`, ErrMalformedCommand},
		{"bit two", "plc/M0/set", `{"value":2}`, ErrInvalidValue},
		{"bit negative", "plc/M0/set", `{"value":-1}`, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			err := f.svc.HandleCommand(BusMQTT, tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleCommand() error = %v, want %v", err, tt.wantErr)
			}
			if n := f.port.writeCount(); n != 0 {
				t.Errorf("port writes = %d, want 0", n)
			}
		})
	}
}

func TestHandleCommand_WhitelistCheckedBeforePayload(t *testing.T) {
	f := newFixture(t, nil)

	err := f.svc.HandleCommand(BusZMQ, "plc/Y7/set", []byte("garbage"))
	if !errors.Is(err, ErrUnknownAddress) {
		t.Fatalf("HandleCommand() error = %v, want ErrUnknownAddress", err)
	}

	events := f.audit.all()
	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Verdict != VerdictRejected || ev.Address != "Y7" || ev.Value != nil || ev.Source != BusZMQ {
		t.Errorf("audit event = %+v", ev)
	}
}

func TestHandleCommand_NotConnected(t *testing.T) {
	f := newFixture(t, nil)
	_ = f.link.Disconnect()

	err := f.svc.HandleCommand(BusMQTT, "plc/D0/set", []byte(`{"value":4}`))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("HandleCommand() error = %v, want ErrNotConnected", err)
	}
	if n := f.port.writeCount(); n != 0 {
		t.Errorf("port writes = %d, want 0", n)
	}
}

func TestHandleCommand_BitRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.svc.HandleCommand(BusMQTT, "plc/M0/set", []byte(`{"value": 1}`)); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	waitFor(t, "M0 written", func() bool {
		d, _ := f.svc.Device("M0")
		return d.Value == 1
	})

	// The next poll reads back the written value and sees no change.
	f.svc.readCycle()

	waitFor(t, "audit", func() bool { return len(f.audit.all()) == 1 })
	if n := countKind(drain(f.svc), SignalDeviceValuesChanged); n != 1 {
		t.Errorf("values-changed signals = %d, want 1", n)
	}
	if n := len(f.mqtt.messages()); n != 1 {
		t.Errorf("mqtt messages = %d, want 1", n)
	}
	ev := f.audit.all()[0]
	if ev.Verdict != VerdictWritten || ev.Value == nil || *ev.Value != 1 {
		t.Errorf("audit event = %+v", ev)
	}
}

func TestHandleCommand_BitZeroAccepted(t *testing.T) {
	f := newFixture(t, nil)

	for _, v := range []string{`{"value":1}`, `{"value":0}`} {
		if err := f.svc.HandleCommand(BusMQTT, "plc/M0/set", []byte(v)); err != nil {
			t.Fatalf("HandleCommand(%s) error = %v", v, err)
		}
	}
	waitFor(t, "two writes", func() bool { return f.port.writeCount() == 2 })
}

func TestHandleCommand_WriteFailureRecorded(t *testing.T) {
	f := newFixture(t, nil)
	f.port.mu.Lock()
	f.port.writeErr = plc.StatusRejected
	f.port.mu.Unlock()

	if err := f.svc.HandleCommand(BusMQTT, "plc/D0/set", []byte(`{"value":10}`)); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	waitFor(t, "audit", func() bool { return len(f.audit.all()) == 1 })

	ev := f.audit.all()[0]
	if ev.Verdict != VerdictFailed {
		t.Errorf("verdict = %s, want failed", ev.Verdict)
	}
	if !f.link.IsConnected() {
		t.Error("rejected write dropped the link")
	}
	d, _ := f.svc.Device("D0")
	if d.Value != 0 {
		t.Errorf("D0 = %d, want 0 after failed write", d.Value)
	}
}

func TestHandleCommand_QueueFull(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.WriteQueueSize = 1 })

	// Hold the cycle lock so the worker blocks on its first write.
	f.svc.cycleMu.Lock()
	var full bool
	for i := 0; i < 4; i++ {
		if err := f.svc.HandleCommand(BusMQTT, "plc/D0/set", []byte(`{"value":1}`)); errors.Is(err, ErrQueueFull) {
			full = true
		}
	}
	f.svc.cycleMu.Unlock()

	if !full {
		t.Error("no command reported ErrQueueFull")
	}
	waitFor(t, "dropped audit", func() bool {
		for _, ev := range f.audit.all() {
			if ev.Verdict == VerdictDropped {
				return true
			}
		}
		return false
	})
}
