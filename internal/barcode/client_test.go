package barcode

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// reader is an in-process TCP server that records what it receives.
type reader struct {
	ln net.Listener

	mu       sync.Mutex
	received []byte
	accepted int
}

func newReader(t *testing.T) *reader {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	r := &reader{ln: ln}
	go r.serve()
	t.Cleanup(func() { ln.Close() })
	return r
}

func (r *reader) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		r.mu.Lock()
		r.accepted++
		r.mu.Unlock()

		go func(c net.Conn) {
			defer c.Close()
			buf := make([]byte, 64)
			for {
				n, err := c.Read(buf)
				if n > 0 {
					r.mu.Lock()
					r.received = append(r.received, buf[:n]...)
					r.mu.Unlock()
				}
				if err != nil {
					return
				}
			}
		}(conn)
	}
}

func (r *reader) config() Config {
	host, portStr, _ := net.SplitHostPort(r.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return Config{Host: host, Port: port, ConnectTimeout: time.Second}
}

func (r *reader) data() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.received)
}

func (r *reader) connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepted
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

// closedPort returns a local port with nothing listening.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Host: "10.0.0.5", Port: 9004}, false},
		{"missing host", Config{Port: 9004}, true},
		{"zero port", Config{Host: "10.0.0.5"}, true},
		{"port too large", Config{Host: "10.0.0.5", Port: 70000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("New() error = %v", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{Host: "reader", Port: 9004})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.cfg.ConnectTimeout != defaultConnectTimeout ||
		c.cfg.WriteTimeout != defaultWriteTimeout ||
		c.cfg.ReconnectDelay != defaultReconnectDelay {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
	if got := c.cfg.Address(); got != "reader:9004" {
		t.Errorf("Address() = %q", got)
	}
}

func TestClient_ConnectAndSend(t *testing.T) {
	r := newReader(t)
	c, err := New(r.config())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	var states []bool
	var statesMu sync.Mutex
	c.SetOnStateChange(func(connected bool) {
		statesMu.Lock()
		states = append(states, connected)
		statesMu.Unlock()
	})

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false")
	}

	if err := c.SendTrigger(ctx, "+"); err != nil {
		t.Fatalf("SendTrigger() error = %v", err)
	}
	waitFor(t, "trigger byte", func() bool { return r.data() == "+" })

	if n := r.connections(); n != 1 {
		t.Errorf("connections = %d, want 1", n)
	}

	c.Disconnect()
	if c.IsConnected() {
		t.Error("IsConnected() = true after Disconnect")
	}

	statesMu.Lock()
	defer statesMu.Unlock()
	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("state changes = %v, want [true false]", states)
	}
}

func TestClient_SendWithoutConnection(t *testing.T) {
	r := newReader(t)

	t.Run("no auto reconnect", func(t *testing.T) {
		c, _ := New(r.config())
		defer c.Close()

		if err := c.SendTrigger(context.Background(), "+"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("SendTrigger() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("auto reconnect dials", func(t *testing.T) {
		cfg := r.config()
		cfg.AutoReconnect = true
		c, _ := New(cfg)
		defer c.Close()

		if err := c.SendTrigger(context.Background(), "LON"); err != nil {
			t.Fatalf("SendTrigger() error = %v", err)
		}
		waitFor(t, "command", func() bool { return r.data() == "LON" })
	})
}

func TestClient_ConnectFailure(t *testing.T) {
	c, err := New(Config{Host: "127.0.0.1", Port: closedPort(t), AutoReconnect: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if err := c.Connect(context.Background()); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if err := c.SendTrigger(context.Background(), "+"); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("SendTrigger() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	r := newReader(t)
	c, _ := New(r.config())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.SendTrigger(ctx, "+"); !errors.Is(err, ErrSendFailed) {
		t.Errorf("SendTrigger() error = %v, want ErrSendFailed", err)
	}
}

func TestClient_ScheduledReconnect(t *testing.T) {
	r := newReader(t)
	cfg := r.config()
	cfg.AutoReconnect = true
	cfg.ReconnectDelay = 10 * time.Millisecond
	c, _ := New(cfg)
	defer c.Close()

	c.scheduleReconnect()
	c.scheduleReconnect()

	waitFor(t, "reconnect", c.IsConnected)
	waitFor(t, "pending cleared", func() bool { return !c.reconnectPending.Load() })
	waitFor(t, "accept", func() bool { return r.connections() >= 1 })

	time.Sleep(20 * time.Millisecond)
	if n := r.connections(); n != 1 {
		t.Errorf("connections = %d, want 1 for two schedules", n)
	}
}

func TestClient_CloseStopsPendingReconnect(t *testing.T) {
	r := newReader(t)
	cfg := r.config()
	cfg.AutoReconnect = true
	cfg.ReconnectDelay = time.Hour
	c, _ := New(cfg)

	c.scheduleReconnect()

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() blocked on pending reconnect")
	}

	if r.connections() != 0 {
		t.Error("reconnect dialled after Close")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	r := newReader(t)
	c, _ := New(r.config())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.Close(); err != nil {
			t.Errorf("Close() #%d error = %v", i, err)
		}
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := c.SendTrigger(context.Background(), "+"); !errors.Is(err, ErrClosed) {
		t.Errorf("SendTrigger() after Close error = %v, want ErrClosed", err)
	}
	if err := c.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect() after Close error = %v, want ErrClosed", err)
	}
}
