package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/plcbridge/internal/device"
	"github.com/nerrad567/plcbridge/internal/plc"
)

// Defaults applied by NewService.
const (
	DefaultInterval         = 100 * time.Millisecond
	DefaultWriteQueueSize   = 64
	DefaultSignalBufferSize = 256
	DefaultTriggerTimeout   = 2 * time.Second
	DefaultTriggerCommand   = "+"
	DefaultTriggerDevice    = "D8008"
)

// TriggerConfig selects the status bit that fires the barcode reader.
type TriggerConfig struct {
	Enabled bool
	Device  string
	Bit     uint
	Command string
	Timeout time.Duration
}

// Options configures a Service.
type Options struct {
	// Link and Registry are required.
	Link     *plc.Link
	Registry *device.Registry

	Codec   Codec
	Sinks   []Sink
	Sources []Source

	Trigger       Trigger
	TriggerConfig TriggerConfig

	Interval         time.Duration
	WriteQueueSize   int
	SignalBufferSize int

	Recorder CommandRecorder
	Metrics  Metrics
	Logger   Logger

	// Now overrides the clock used for timestamps. Tests only.
	Now func() time.Time
}

// Service polls the controller and bridges device values to the buses.
type Service struct {
	link      *plc.Link
	registry  *device.Registry
	addresses []string
	codec     Codec
	fanout    *Fanout
	interval  time.Duration
	now       func() time.Time

	trigger    Trigger
	triggerCfg TriggerConfig
	edge       *EdgeDetector

	recorder CommandRecorder
	metrics  Metrics

	signals chan Signal
	writes  chan writeRequest

	// cycleMu serialises read cycles, writes and explicit connects.
	cycleMu    sync.Mutex
	readFaults map[string]plc.Status

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runDone   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sourcesMu sync.Mutex
	sources   []Source

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	logger   Logger
	loggerMu sync.RWMutex
}

// NewService validates opts and starts the write worker. The poll loop
// is not started; call Start.
func NewService(opts Options) (*Service, error) {
	if opts.Link == nil {
		return nil, errors.New("monitor: link is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("monitor: registry is required")
	}

	if opts.Codec == nil {
		opts.Codec = JSONCodec{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.WriteQueueSize <= 0 {
		opts.WriteQueueSize = DefaultWriteQueueSize
	}
	if opts.SignalBufferSize <= 0 {
		opts.SignalBufferSize = DefaultSignalBufferSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	tc := opts.TriggerConfig
	if tc.Device == "" {
		tc.Device = DefaultTriggerDevice
	}
	if tc.Command == "" {
		tc.Command = DefaultTriggerCommand
	}
	if tc.Timeout <= 0 {
		tc.Timeout = DefaultTriggerTimeout
	}

	for _, sink := range opts.Sinks {
		opts.Registry.CacheTopics(sink.Name(), sink.Topic)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		link:       opts.Link,
		registry:   opts.Registry,
		addresses:  opts.Registry.Addresses(),
		codec:      opts.Codec,
		fanout:     NewFanout(opts.Codec, opts.Logger, opts.Sinks...),
		interval:   opts.Interval,
		now:        opts.Now,
		trigger:    opts.Trigger,
		triggerCfg: tc,
		recorder:   opts.Recorder,
		metrics:    opts.Metrics,
		signals:    make(chan Signal, opts.SignalBufferSize),
		writes:     make(chan writeRequest, opts.WriteQueueSize),
		readFaults: make(map[string]plc.Status),
		ctx:        ctx,
		cancel:     cancel,
		sources:    append([]Source(nil), opts.Sources...),
		logger:     opts.Logger,
	}

	switch {
	case !tc.Enabled || opts.Trigger == nil:
	case !opts.Registry.Contains(tc.Device):
		s.logWarn("barcode trigger disabled: device not configured", "device", tc.Device)
	default:
		s.edge = NewEdgeDetector(tc.Bit)
	}

	s.wg.Add(1)
	go s.writeWorker()

	return s, nil
}

// SetLogger replaces the logger.
func (s *Service) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// AttachSource registers an inbound bus to be closed with the service.
// If the service is already closed, src is closed immediately.
func (s *Service) AttachSource(src Source) {
	s.sourcesMu.Lock()
	if s.closed.Load() {
		s.sourcesMu.Unlock()
		_ = src.Close()
		return
	}
	s.sources = append(s.sources, src)
	s.sourcesMu.Unlock()
}

// Signals returns the event channel. It is never closed.
func (s *Service) Signals() <-chan Signal {
	return s.signals
}

// Devices returns a snapshot of all devices in configuration order.
func (s *Service) Devices() []device.Device {
	return s.registry.Snapshot()
}

// Device returns one device by address.
func (s *Service) Device(address string) (device.Device, bool) {
	return s.registry.Lookup(address)
}

// IsConnected reports whether the controller link is up.
func (s *Service) IsConnected() bool {
	return s.link.IsConnected()
}

// Start launches the poll loop. The first cycle runs immediately.
func (s *Service) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.runDone != nil {
		select {
		case <-s.runDone:
			// Halted on its own after reconnect exhaustion.
			s.runCancel()
		default:
			return ErrAlreadyRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.runCancel = cancel
	s.runDone = done

	go s.run(runCtx, done)

	s.logInfo("poll loop started", "interval", s.interval.String(), "devices", len(s.addresses))
	return nil
}

// Stop halts the poll loop and waits for the current cycle to finish.
func (s *Service) Stop() {
	s.runMu.Lock()
	cancel, done := s.runCancel, s.runDone
	s.runCancel, s.runDone = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logInfo("poll loop stopped")
}

// Running reports whether the poll loop is active.
func (s *Service) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.runDone == nil {
		return false
	}
	select {
	case <-s.runDone:
		return false
	default:
		return true
	}
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if !s.tick() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one scheduler step. It returns false when the loop must halt.
func (s *Service) tick() bool {
	if !s.link.IsConnected() {
		attempt := s.link.Attempts() + 1
		result := s.link.Recover()
		switch result {
		case plc.RecoveryWaiting:
			return true
		case plc.RecoveryReconnected:
			s.logInfo("controller reconnected", "attempt", attempt)
			s.recordReconnect(result, attempt)
			s.emit(controllerConnection(true))
			return true
		case plc.RecoveryFailed:
			s.logWarn("controller reconnect failed",
				"attempt", attempt,
				"max_attempts", plc.MaxReconnectAttempts,
			)
			s.recordReconnect(result, attempt)
			s.emit(controllerConnection(false))
			return true
		case plc.RecoveryExhausted:
			s.logError("controller reconnect attempts exhausted",
				"max_attempts", plc.MaxReconnectAttempts,
			)
			s.recordReconnect(result, plc.MaxReconnectAttempts)
			s.emit(reconnectExhausted())
			return false
		case plc.RecoveryNotNeeded:
		}
	}

	s.readCycle()
	return true
}

func (s *Service) readCycle() {
	start := s.now()

	s.cycleMu.Lock()
	values := make(map[string]int, len(s.addresses))
	for _, addr := range s.addresses {
		v, st := s.link.Read(addr)
		if st.IsConnectionLost() {
			s.cycleMu.Unlock()
			s.logWarn("controller connection lost", "address", addr, "status", st.String())
			s.emit(controllerConnection(false))
			return
		}
		if !st.OK() {
			s.noteReadFault(addr, st)
			continue
		}
		s.clearReadFault(addr)
		values[addr] = v
	}

	s.link.ResetAttempts()
	changed := s.registry.Apply(values)

	fire := false
	if s.edge != nil {
		if v, ok := values[s.triggerCfg.Device]; ok {
			fire = s.edge.Observe(v)
		}
	}
	s.cycleMu.Unlock()

	if fire {
		s.fireTrigger()
	}

	if len(changed) > 0 {
		s.fanout.Publish(changed, s.now())
		s.emit(valuesChanged())
	}

	if s.metrics != nil {
		s.metrics.RecordCycle(s.now().Sub(start), len(s.addresses), len(changed))
	}
}

// noteReadFault logs a failing address once per fault. Caller holds cycleMu.
func (s *Service) noteReadFault(address string, st plc.Status) {
	if prev, ok := s.readFaults[address]; ok && prev == st {
		return
	}
	s.readFaults[address] = st
	err := st.Err("read", address)
	s.logWarn("device read failed", "address", address, "error", err)
	s.emit(errorSignal("Read failed", err.Error()))
}

// clearReadFault forgets a recovered address. Caller holds cycleMu.
func (s *Service) clearReadFault(address string) {
	if _, ok := s.readFaults[address]; ok {
		delete(s.readFaults, address)
		s.logInfo("device read recovered", "address", address)
	}
}

func (s *Service) fireTrigger() {
	s.logInfo("barcode trigger edge detected",
		"device", s.triggerCfg.Device,
		"bit", s.triggerCfg.Bit,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.triggerCfg.Timeout)
		defer cancel()

		if err := s.trigger.SendTrigger(ctx, s.triggerCfg.Command); err != nil {
			s.logError("barcode trigger failed", "error", err)
			s.emit(errorSignal("Barcode trigger failed", err.Error()))
		}
	}()
}

// WriteDevice writes one value synchronously. It applies the same checks
// as bus commands.
func (s *Service) WriteDevice(address string, value int) error {
	ev := CommandEvent{Source: SourceManual, Address: address, Value: &value, At: s.now()}

	if s.closed.Load() {
		return ErrClosed
	}

	d, ok := s.registry.Lookup(address)
	if !ok {
		return s.reject(ev, fmt.Errorf("%w: %s", ErrUnknownAddress, address))
	}
	if err := device.ValidateValue(d, value); err != nil {
		return s.reject(ev, fmt.Errorf("%w: %w", ErrInvalidValue, err))
	}
	if !s.link.IsConnected() {
		return s.reject(ev, ErrNotConnected)
	}

	ev.Verdict = VerdictWritten
	err := s.write(address, value)
	if err != nil {
		ev.Verdict = VerdictFailed
		ev.Reason = err.Error()
	}
	s.record(ev)
	return err
}

// write performs one controller write and publishes the result.
func (s *Service) write(address string, value int) error {
	s.cycleMu.Lock()
	st := s.link.Write(address, value)
	if !st.OK() {
		s.cycleMu.Unlock()
		err := st.Err("write", address)
		s.logError("device write failed", "address", address, "value", value, "error", err)
		if st.IsConnectionLost() {
			s.emit(controllerConnection(false))
		}
		s.emit(errorSignal("Write failed", err.Error()))
		return err
	}
	d, changed, err := s.registry.Set(address, value)
	s.cycleMu.Unlock()
	if err != nil {
		return err
	}

	s.logInfo("device written", "address", address, "value", value)
	if changed {
		s.fanout.Publish([]device.Device{d}, s.now())
	}
	s.emit(valuesChanged())
	return nil
}

// Connect opens the controller link and resets the reconnect budget.
func (s *Service) Connect() error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.cycleMu.Lock()
	st := s.link.Connect()
	if s.edge != nil {
		s.edge.Reset()
	}
	clear(s.readFaults)
	s.cycleMu.Unlock()

	if !st.OK() {
		err := st.Err("connect", "")
		s.logError("controller connect failed", "error", err)
		s.emit(controllerConnection(false))
		s.emit(errorSignal("Connection failed", err.Error()))
		return err
	}

	s.logInfo("controller connected")
	s.emit(controllerConnection(true))
	return nil
}

// Disconnect stops the poll loop and closes the controller link.
func (s *Service) Disconnect() error {
	s.Stop()

	s.cycleMu.Lock()
	st := s.link.Disconnect()
	s.cycleMu.Unlock()

	s.emit(controllerConnection(false))
	if !st.OK() && st != plc.StatusNotOpen {
		return st.Err("disconnect", "")
	}
	s.logInfo("controller disconnected")
	return nil
}

// NotifyPublisherState emits the current bus connection state.
func (s *Service) NotifyPublisherState() {
	zmq, mqtt := s.fanout.State()
	s.emit(publisherState(zmq, mqtt))
}

// Close stops everything and releases all resources. It is idempotent.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.sourcesMu.Lock()
		s.closed.Store(true)
		sources := s.sources
		s.sources = nil
		s.sourcesMu.Unlock()

		s.Stop()
		s.cancel()
		s.wg.Wait()

		var errs []error
		for _, src := range sources {
			if err := src.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.fanout.Close(); err != nil {
			errs = append(errs, err)
		}
		if s.trigger != nil {
			if err := s.trigger.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		s.cycleMu.Lock()
		st := s.link.Close()
		s.cycleMu.Unlock()
		if !st.OK() {
			errs = append(errs, st.Err("close", ""))
		}

		s.closeErr = errors.Join(errs...)
		s.logInfo("monitor closed")
	})
	return s.closeErr
}

func (s *Service) emit(sig Signal) {
	select {
	case s.signals <- sig:
	default:
		s.logWarn("signal dropped", "kind", sig.Kind.String())
	}
}

func (s *Service) recordReconnect(result plc.Recovery, attempt int) {
	if s.metrics != nil {
		s.metrics.RecordReconnect(result.String(), attempt)
	}
}

func (s *Service) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *Service) logDebug(msg string, keysAndValues ...any) {
	if l := s.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (s *Service) logInfo(msg string, keysAndValues ...any) {
	if l := s.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (s *Service) logWarn(msg string, keysAndValues ...any) {
	if l := s.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (s *Service) logError(msg string, keysAndValues ...any) {
	if l := s.getLogger(); l != nil {
		l.Error(msg, keysAndValues...)
	}
}
