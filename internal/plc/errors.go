package plc

import (
	"errors"
	"fmt"
)

// Domain errors for the plc package.
var (
	// ErrNotConnected is returned by Status.Err for connection-lost statuses
	// so callers can use errors.Is without inspecting codes.
	ErrNotConnected = errors.New("plc: not connected")

	// ErrInvalidAddress is returned when a device address cannot be parsed.
	ErrInvalidAddress = errors.New("plc: invalid device address")
)

// StatusError carries a failed Status through error-returning APIs.
type StatusError struct {
	Op      string
	Address string
	Status  Status
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("plc: %s %s: %s", e.Op, e.Address, e.Status.Message())
	}
	return fmt.Sprintf("plc: %s: %s", e.Op, e.Status.Message())
}

// Is lets errors.Is(err, ErrNotConnected) match connection-lost statuses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotConnected && e.Status.IsConnectionLost()
}

// Err converts a status into an error, or nil when the status is OK.
func (s Status) Err(op, address string) error {
	if s.OK() {
		return nil
	}
	return &StatusError{Op: op, Address: address, Status: s}
}
