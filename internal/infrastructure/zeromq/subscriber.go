package zeromq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
)

const defaultRetryInterval = time.Second

// MessageHandler receives one (topic, body) pair. It runs on the
// receive goroutine and should return quickly.
type MessageHandler func(topic string, payload []byte)

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	// Endpoint is the address to connect to, e.g. "tcp://10.0.0.2:5557".
	Endpoint string

	// TopicPrefix selects messages; the socket subscribes to "{prefix}/".
	TopicPrefix string

	// RetryInterval is the dial retry and the pause after a receive
	// error. Default 1s.
	RetryInterval time.Duration
}

// Subscriber is a connected SUB socket with a receive goroutine.
type Subscriber struct {
	cfg     SubscriberConfig
	sock    zmq4.Socket
	handler MessageHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connected atomic.Bool
	received  atomic.Uint64
	closeOnce sync.Once
	closeErr  error

	logger   Logger
	loggerMu sync.RWMutex
}

// NewSubscriber dials cfg.Endpoint, subscribes to the prefix and starts
// delivering messages to handler.
func NewSubscriber(ctx context.Context, cfg SubscriberConfig, handler MessageHandler, logger Logger) (*Subscriber, error) {
	if handler == nil {
		return nil, fmt.Errorf("zeromq: handler must not be nil")
	}
	endpoint, err := NormalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	cfg.Endpoint = endpoint
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}

	sctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewSub(sctx, zmq4.WithDialerRetry(cfg.RetryInterval))

	if err := sock.Dial(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, endpoint, err)
	}

	filter := cfg.TopicPrefix + "/"
	if err := sock.SetOption(zmq4.OptionSubscribe, filter); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, filter, err)
	}

	s := &Subscriber{
		cfg:     cfg,
		sock:    sock,
		handler: handler,
		ctx:     sctx,
		cancel:  cancel,
		logger:  logger,
	}
	s.connected.Store(true)

	s.wg.Add(1)
	go s.receiveLoop()

	return s, nil
}

// Name returns the bus name.
func (s *Subscriber) Name() string {
	return BusName
}

// IsConnected reports whether the subscriber is running.
func (s *Subscriber) IsConnected() bool {
	return s.connected.Load()
}

// Received returns the number of messages delivered to the handler.
func (s *Subscriber) Received() uint64 {
	return s.received.Load()
}

func (s *Subscriber) receiveLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logWarn("zeromq receive failed", "endpoint", s.cfg.Endpoint, "error", err)

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(s.cfg.RetryInterval):
			}
			continue
		}

		if len(msg.Frames) < 2 {
			s.logDebug("zeromq message without body ignored", "frames", len(msg.Frames))
			continue
		}
		s.dispatch(string(msg.Frames[0]), msg.Frames[1])
	}
}

func (s *Subscriber) dispatch(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logError("zeromq handler panic recovered",
				"topic", topic,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	s.received.Add(1)
	s.handler(topic, payload)
}

// Close stops the receive goroutine and closes the socket.
// Safe to call multiple times.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		s.cancel()
		s.closeErr = s.sock.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

func (s *Subscriber) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *Subscriber) logDebug(msg string, args ...any) {
	if l := s.getLogger(); l != nil {
		l.Debug(msg, args...)
	}
}

func (s *Subscriber) logWarn(msg string, args ...any) {
	if l := s.getLogger(); l != nil {
		l.Warn(msg, args...)
	}
}

func (s *Subscriber) logError(msg string, args ...any) {
	if l := s.getLogger(); l != nil {
		l.Error(msg, args...)
	}
}
