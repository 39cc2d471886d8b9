package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/plcbridge/internal/monitor"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Logger is the subset of logging.Logger the recorder uses.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder adapts a Repository to monitor.CommandRecorder. Events are
// queued and written by one goroutine so the caller never waits on SQLite.
type Recorder struct {
	repo  Repository
	queue chan monitor.CommandEvent

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	written atomic.Uint64
	dropped atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRecorder starts a recorder writing to repo. A non-positive size uses
// the default queue length.
func NewRecorder(repo Repository, size int) *Recorder {
	if size <= 0 {
		size = defaultQueueSize
	}
	r := &Recorder{
		repo:  repo,
		queue: make(chan monitor.CommandEvent, size),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// SetLogger sets the logger for write failures and drops.
func (r *Recorder) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// RecordCommand queues ev. It drops the event when the queue is full or
// the recorder is closed.
func (r *Recorder) RecordCommand(ev monitor.CommandEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		if l := r.getLogger(); l != nil {
			l.Warn("audit queue full, command event dropped",
				"source", ev.Source, "address", ev.Address, "verdict", string(ev.Verdict))
		}
	}
}

// Stats returns the number of events written and dropped.
func (r *Recorder) Stats() (written, dropped uint64) {
	return r.written.Load(), r.dropped.Load()
}

// Close flushes queued events and stops the writer. Safe to call more
// than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Recorder) loop() {
	defer r.wg.Done()

	for ev := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		rec := recordFromEvent(ev)
		err := r.repo.Create(ctx, &rec)
		cancel()

		if err != nil {
			if l := r.getLogger(); l != nil {
				l.Error("writing audit record failed", "address", ev.Address, "error", err)
			}
			continue
		}
		r.written.Add(1)
	}
}

func recordFromEvent(ev monitor.CommandEvent) Record {
	rec := Record{
		Source:    ev.Source,
		Topic:     ev.Topic,
		Address:   ev.Address,
		Verdict:   string(ev.Verdict),
		Reason:    ev.Reason,
		CreatedAt: ev.At,
	}
	if ev.Value != nil {
		v := *ev.Value
		rec.Value = &v
	}
	return rec
}

func (r *Recorder) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}
