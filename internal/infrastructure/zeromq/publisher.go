package zeromq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"
)

const (
	defaultQueueSize   = 1024
	defaultTopicPrefix = "plc"

	// BusName identifies this transport in device topic caches.
	BusName = "zmq"
)

// Logger is the logging surface used by this package.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	// Endpoint is the bind address, e.g. "tcp://*:5556".
	Endpoint string

	// TopicPrefix is prepended to device addresses. Default "plc".
	TopicPrefix string

	// QueueSize bounds pending messages. Default 1024.
	QueueSize int
}

// PublisherStats holds send counters.
type PublisherStats struct {
	Sent    uint64
	Dropped uint64
	Failed  uint64
}

// Publisher is a bound PUB socket with an asynchronous send queue.
type Publisher struct {
	cfg  PublisherConfig
	sock zmq4.Socket

	queue  chan zmq4.Msg
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connected atomic.Bool
	closeOnce sync.Once
	closeErr  error

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewPublisher binds a PUB socket on cfg.Endpoint and starts the sender.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	endpoint, err := NormalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	cfg.Endpoint = endpoint
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	sctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewPub(sctx)
	if err := sock.Listen(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrBindFailed, endpoint, err)
	}

	p := &Publisher{
		cfg:    cfg,
		sock:   sock,
		queue:  make(chan zmq4.Msg, cfg.QueueSize),
		ctx:    sctx,
		cancel: cancel,
	}
	p.connected.Store(true)

	p.wg.Add(1)
	go p.sendLoop()

	return p, nil
}

// Name returns the bus name.
func (p *Publisher) Name() string {
	return BusName
}

// Topic returns "{prefix}/{address}".
func (p *Publisher) Topic(address string) string {
	return p.cfg.TopicPrefix + "/" + address
}

// IsConnected reports whether the socket is bound and open.
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

// Publish queues a two-frame message. It never blocks.
func (p *Publisher) Publish(topic string, payload []byte) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}
	if topic == "" {
		return ErrEmptyTopic
	}

	msg := zmq4.NewMsgFrom([]byte(topic), payload)
	select {
	case p.queue <- msg:
		return nil
	default:
		p.dropped.Add(1)
		return fmt.Errorf("%w: topic %s", ErrQueueFull, topic)
	}
}

func (p *Publisher) sendLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case msg := <-p.queue:
			if err := p.sock.Send(msg); err != nil {
				if p.ctx.Err() != nil {
					return
				}
				p.failed.Add(1)
				p.logError("zeromq send failed", "topic", string(msg.Frames[0]), "error", err)
				continue
			}
			p.sent.Add(1)
		}
	}
}

// Stats returns the send counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Sent:    p.sent.Load(),
		Dropped: p.dropped.Load(),
		Failed:  p.failed.Load(),
	}
}

// Close stops the sender and closes the socket. Queued messages are
// discarded. Safe to call multiple times.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.connected.Store(false)
		p.cancel()
		p.wg.Wait()
		p.closeErr = p.sock.Close()
		p.logInfo("zeromq publisher closed", "endpoint", p.cfg.Endpoint)
	})
	return p.closeErr
}

// SetLogger sets the logger for this publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *Publisher) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

func (p *Publisher) logInfo(msg string, args ...any) {
	if l := p.getLogger(); l != nil {
		l.Info(msg, args...)
	}
}

func (p *Publisher) logError(msg string, args ...any) {
	if l := p.getLogger(); l != nil {
		l.Error(msg, args...)
	}
}
