package plc

import (
	"sync"
	"sync/atomic"
	"time"
)

// Recovery policy constants.
const (
	// MaxReconnectAttempts is the number of consecutive failed automatic
	// reconnects after which recovery stops until an explicit Connect.
	MaxReconnectAttempts = 3

	// ReconnectInterval is the minimum time between automatic reconnects.
	ReconnectInterval = 5000 * time.Millisecond
)

// Port is the register-level controller driver.
//
// Implementations do not need to be safe for concurrent use; Link
// serialises every call.
type Port interface {
	Open() Status
	Close() Status
	ReadRegister(address string) (int, Status)
	WriteRegister(address string, value int) Status
}

// State is the connection state of a Link.
type State int

// Link states.
const (
	Disconnected State = iota
	Connected
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Recovery is the outcome of one Recover evaluation.
type Recovery int

// Recovery outcomes.
const (
	// RecoveryNotNeeded means the link is already connected.
	RecoveryNotNeeded Recovery = iota

	// RecoveryWaiting means the reconnect interval has not elapsed yet.
	RecoveryWaiting

	// RecoveryReconnected means an attempt was made and succeeded.
	RecoveryReconnected

	// RecoveryFailed means an attempt was made and failed.
	RecoveryFailed

	// RecoveryExhausted means the attempt budget is spent.
	RecoveryExhausted
)

// String implements fmt.Stringer.
func (r Recovery) String() string {
	switch r {
	case RecoveryNotNeeded:
		return "not_needed"
	case RecoveryWaiting:
		return "waiting"
	case RecoveryReconnected:
		return "reconnected"
	case RecoveryFailed:
		return "failed"
	case RecoveryExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Link is the connection state machine around a single Port.
//
// Thread Safety: All methods are safe for concurrent use.
type Link struct {
	mu          sync.Mutex
	port        Port
	state       State
	connected   atomic.Bool // mirrors state for lock-free readers
	attempts    int
	lastAttempt time.Time
	now         func() time.Time
}

// NewLink creates a disconnected Link owning port.
func NewLink(port Port) *Link {
	return &Link{
		port: port,
		now:  time.Now,
	}
}

// SetClock replaces the wall clock used by Recover.
func (l *Link) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Connect opens the controller session. It is the operator's explicit
// connect and clears any spent recovery budget.
func (l *Link) Connect() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts = 0
	l.lastAttempt = time.Time{}

	if l.state == Connected {
		return StatusOK
	}

	st := l.port.Open()
	if st.OK() {
		l.setState(Connected)
	}
	return st
}

// Disconnect closes the controller session.
func (l *Link) Disconnect() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.port.Close()
	if st.OK() || st == StatusNotOpen {
		l.setState(Disconnected)
	}
	return st
}

// Reconnect closes then reopens the session. A close failure is ignored.
func (l *Link) Reconnect() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reconnectLocked()
}

func (l *Link) reconnectLocked() Status {
	_ = l.port.Close()
	l.setState(Disconnected)

	st := l.port.Open()
	if st.OK() {
		l.setState(Connected)
		l.attempts = 0
	}
	return st
}

// Recover runs the automatic recovery policy once.
func (l *Link) Recover() Recovery {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Connected {
		return RecoveryNotNeeded
	}
	if l.attempts >= MaxReconnectAttempts {
		return RecoveryExhausted
	}

	now := l.now()
	if !l.lastAttempt.IsZero() && now.Sub(l.lastAttempt) < ReconnectInterval {
		return RecoveryWaiting
	}

	l.attempts++
	l.lastAttempt = now

	if l.reconnectLocked().OK() {
		return RecoveryReconnected
	}
	return RecoveryFailed
}

// Read reads one register. A connection-lost status drops the link.
func (l *Link) Read(address string) (int, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Connected {
		return 0, StatusNotOpen
	}

	value, st := l.port.ReadRegister(address)
	if st.IsConnectionLost() {
		l.setState(Disconnected)
	}
	return value, st
}

// Write writes one register. A connection-lost status drops the link.
func (l *Link) Write(address string, value int) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Connected {
		return StatusNotOpen
	}

	st := l.port.WriteRegister(address, value)
	if st.IsConnectionLost() {
		l.setState(Disconnected)
	}
	return st
}

// ResetAttempts clears the reconnect counter after a successful poll cycle.
func (l *Link) ResetAttempts() {
	l.mu.Lock()
	l.attempts = 0
	l.mu.Unlock()
}

// Attempts returns the current reconnect attempt counter.
func (l *Link) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsConnected reports whether the link is Connected. It does not wait for
// an in-flight register access.
func (l *Link) IsConnected() bool {
	return l.connected.Load()
}

func (l *Link) setState(s State) {
	l.state = s
	l.connected.Store(s == Connected)
}

// Close releases the session. The port is closed even when the link has
// already dropped to Disconnected, since a lost session may still hold a
// socket. Safe to call repeatedly.
func (l *Link) Close() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.port.Close()
	l.setState(Disconnected)
	if st == StatusNotOpen {
		return StatusOK
	}
	return st
}
