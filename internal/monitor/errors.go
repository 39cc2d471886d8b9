package monitor

import "errors"

// Domain errors for the monitor package.
var (
	// ErrNotCommandTopic is returned when a topic does not end in the
	// command suffix.
	ErrNotCommandTopic = errors.New("monitor: not a command topic")

	// ErrEmptyAddress is returned when a command topic has no address segment.
	ErrEmptyAddress = errors.New("monitor: command topic has no address")

	// ErrUnknownAddress is returned when the address is not whitelisted.
	ErrUnknownAddress = errors.New("monitor: address not in registry")

	// ErrMalformedCommand is returned when a payload is not {"value": <int>}.
	ErrMalformedCommand = errors.New("monitor: malformed write command")

	// ErrInvalidValue is returned when a value is not allowed for the device type.
	ErrInvalidValue = errors.New("monitor: value not allowed for device type")

	// ErrNotConnected is returned when the controller is disconnected.
	ErrNotConnected = errors.New("monitor: controller not connected")

	// ErrQueueFull is returned when the write worker is saturated.
	ErrQueueFull = errors.New("monitor: write queue full")

	// ErrAlreadyRunning is returned by Start when the poll loop is running.
	ErrAlreadyRunning = errors.New("monitor: already running")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("monitor: service closed")
)
