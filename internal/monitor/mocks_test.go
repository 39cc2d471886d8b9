package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/plcbridge/internal/device"
	"github.com/nerrad567/plcbridge/internal/plc"
)

// scriptPort is an in-memory plc.Port.
type scriptPort struct {
	mu         sync.Mutex
	open       bool
	openStatus []plc.Status
	values     map[string]int
	readStatus map[string]plc.Status
	writeErr   plc.Status
	opens      int
	reads      int
	writes     []portWrite
}

type portWrite struct {
	Address string
	Value   int
}

func newScriptPort() *scriptPort {
	return &scriptPort{
		values:     make(map[string]int),
		readStatus: make(map[string]plc.Status),
	}
}

func (p *scriptPort) Open() plc.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	st := plc.StatusOK
	if len(p.openStatus) > 0 {
		st = p.openStatus[0]
		p.openStatus = p.openStatus[1:]
	}
	if st.OK() {
		p.open = true
	}
	return st
}

func (p *scriptPort) Close() plc.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return plc.StatusNotOpen
	}
	p.open = false
	return plc.StatusOK
}

func (p *scriptPort) ReadRegister(address string) (int, plc.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if st, ok := p.readStatus[address]; ok {
		return 0, st
	}
	return p.values[address], plc.StatusOK
}

func (p *scriptPort) WriteRegister(address string, value int) plc.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != plc.StatusOK {
		return p.writeErr
	}
	p.writes = append(p.writes, portWrite{Address: address, Value: value})
	p.values[address] = value
	return plc.StatusOK
}

func (p *scriptPort) set(address string, value int) {
	p.mu.Lock()
	p.values[address] = value
	p.mu.Unlock()
}

func (p *scriptPort) failRead(address string, st plc.Status) {
	p.mu.Lock()
	p.readStatus[address] = st
	p.mu.Unlock()
}

func (p *scriptPort) clearRead(address string) {
	p.mu.Lock()
	delete(p.readStatus, address)
	p.mu.Unlock()
}

func (p *scriptPort) failOpens(sts ...plc.Status) {
	p.mu.Lock()
	p.openStatus = append(p.openStatus, sts...)
	p.mu.Unlock()
}

func (p *scriptPort) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func (p *scriptPort) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// recordingSink is a Sink that keeps what it was given.
type recordingSink struct {
	name string

	mu        sync.Mutex
	connected bool
	failWith  error
	published []published
	closed    int
}

type published struct {
	Topic   string
	Payload []byte
}

func newRecordingSink(name string) *recordingSink {
	return &recordingSink{name: name, connected: true}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Topic(address string) string {
	return "plc/" + s.name + "/" + address
}

func (s *recordingSink) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *recordingSink) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.published = append(s.published, published{Topic: topic, Payload: payload})
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	s.connected = false
	return nil
}

func (s *recordingSink) messages() []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]published(nil), s.published...)
}

func (s *recordingSink) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// recordingTrigger counts SendTrigger calls.
type recordingTrigger struct {
	mu       sync.Mutex
	commands []string
	failWith error
	closed   int
}

func (t *recordingTrigger) SendTrigger(_ context.Context, command string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands = append(t.commands, command)
	return t.failWith
}

func (t *recordingTrigger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

func (t *recordingTrigger) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.commands)
}

// recordingRecorder keeps command events.
type recordingRecorder struct {
	mu     sync.Mutex
	events []CommandEvent
}

func (r *recordingRecorder) RecordCommand(ev CommandEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingRecorder) all() []CommandEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CommandEvent(nil), r.events...)
}

// countingMetrics counts calls per method.
type countingMetrics struct {
	mu         sync.Mutex
	cycles     int
	reconnects []string
	commands   []string
}

func (m *countingMetrics) RecordCycle(time.Duration, int, int) {
	m.mu.Lock()
	m.cycles++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordReconnect(result string, _ int) {
	m.mu.Lock()
	m.reconnects = append(m.reconnects, result)
	m.mu.Unlock()
}

func (m *countingMetrics) RecordCommand(_, verdict string) {
	m.mu.Lock()
	m.commands = append(m.commands, verdict)
	m.mu.Unlock()
}

// stubSource records Close.
type stubSource struct {
	mu     sync.Mutex
	closed int
}

func (s *stubSource) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *stubSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 21, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errSinkDown = errors.New("sink down")

type fixture struct {
	svc     *Service
	port    *scriptPort
	link    *plc.Link
	clock   *testClock
	mqtt    *recordingSink
	zmq     *recordingSink
	trigger *recordingTrigger
	audit   *recordingRecorder
	metrics *countingMetrics
}

// newFixture builds a connected service over D0 (Word) and M0 (Bit).
// mutate may adjust the options before construction.
func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()

	reg, err := device.NewRegistry([]device.Device{
		{Address: "D0", Name: "Counter", Type: device.TypeWord},
		{Address: "M0", Name: "Run", Type: device.TypeBit},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	f := &fixture{
		port:    newScriptPort(),
		clock:   newTestClock(),
		mqtt:    newRecordingSink(BusMQTT),
		zmq:     newRecordingSink(BusZMQ),
		trigger: &recordingTrigger{},
		audit:   &recordingRecorder{},
		metrics: &countingMetrics{},
	}
	f.link = plc.NewLink(f.port)
	f.link.SetClock(f.clock.Now)

	opts := Options{
		Link:     f.link,
		Registry: reg,
		Sinks:    []Sink{f.mqtt, f.zmq},
		Trigger:  f.trigger,
		Recorder: f.audit,
		Metrics:  f.metrics,
		Now:      f.clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}

	f.svc, err = NewService(opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() { _ = f.svc.Close() })

	if st := f.link.Connect(); !st.OK() {
		t.Fatalf("Connect() = %v", st)
	}
	return f
}

// drain returns every buffered signal without blocking.
func drain(svc *Service) []Signal {
	var out []Signal
	for {
		select {
		case sig := <-svc.Signals():
			out = append(out, sig)
		default:
			return out
		}
	}
}

func countKind(sigs []Signal, kind SignalKind) int {
	n := 0
	for _, s := range sigs {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
