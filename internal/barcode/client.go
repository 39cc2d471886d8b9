package barcode

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultConnectTimeout = 3 * time.Second
	defaultWriteTimeout   = 2 * time.Second
	defaultReconnectDelay = time.Second
)

// Config holds reader connection settings.
type Config struct {
	Host string
	Port int

	// ConnectTimeout bounds each dial. Default 3s.
	ConnectTimeout time.Duration

	// WriteTimeout bounds each command write. Default 2s.
	WriteTimeout time.Duration

	AutoReconnect bool

	// ReconnectDelay is the wait before the background reconnect that
	// follows a failed write. Default 1s.
	ReconnectDelay time.Duration
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Logger is the logging surface used by Client.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Client is a TCP connection to one barcode reader.
type Client struct {
	cfg Config

	connMu sync.Mutex
	conn   net.Conn

	// reconnectPending is true while a background reconnect is scheduled.
	reconnectPending atomic.Bool

	onState   func(connected bool)
	onStateMu sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

// New validates cfg and returns an unconnected client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}

	return &Client{cfg: cfg, done: make(chan struct{})}, nil
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// SetOnStateChange registers a callback for connect and disconnect events.
func (c *Client) SetOnStateChange(fn func(connected bool)) {
	c.onStateMu.Lock()
	c.onState = fn
	c.onStateMu.Unlock()
}

// Connect dials the reader. It is a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if c.isClosed() {
		return ErrClosed
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", c.cfg.Address())
	if err != nil {
		c.logError("barcode reader connect failed", "address", c.cfg.Address(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.cfg.Address(), err)
	}

	c.conn = conn
	c.logInfo("barcode reader connected", "address", c.cfg.Address())
	c.notifyState(true)
	return nil
}

// SendTrigger writes command to the reader.
func (c *Client) SendTrigger(ctx context.Context, command string) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		if !c.cfg.AutoReconnect {
			return ErrNotConnected
		}
		if err := c.connectLocked(ctx); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.dropLocked()
		return fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
	}

	if _, err := c.conn.Write([]byte(command)); err != nil {
		c.logError("barcode trigger write failed", "error", err)
		c.dropLocked()
		c.scheduleReconnect()
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	c.logInfo("barcode trigger sent", "command", command)
	return nil
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Disconnect closes the current connection without closing the client.
func (c *Client) Disconnect() {
	c.connMu.Lock()
	c.dropLocked()
	c.connMu.Unlock()
}

// Close closes the connection and stops any pending reconnect.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		c.connMu.Lock()
		c.dropLocked()
		c.connMu.Unlock()

		c.wg.Wait()
		c.logInfo("barcode client closed")
	})
	return nil
}

// dropLocked closes the connection. Caller holds connMu.
func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.logWarn("barcode reader disconnected", "address", c.cfg.Address())
	c.notifyState(false)
}

func (c *Client) scheduleReconnect() {
	if !c.cfg.AutoReconnect || c.isClosed() {
		return
	}
	if !c.reconnectPending.CompareAndSwap(false, true) {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.reconnectPending.Store(false)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		defer timer.Stop()

		select {
		case <-c.done:
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-c.done:
				cancel()
			case <-ctx.Done():
			}
		}()

		_ = c.Connect(ctx)
	}()
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) notifyState(connected bool) {
	c.onStateMu.RLock()
	fn := c.onState
	c.onStateMu.RUnlock()

	if fn != nil {
		fn(connected)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
