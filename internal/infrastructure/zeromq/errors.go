package zeromq

import "errors"

// Domain errors for the zeromq package.
var (
	// ErrBindFailed is returned when the PUB socket cannot bind.
	ErrBindFailed = errors.New("zeromq: bind failed")

	// ErrDialFailed is returned when the SUB socket cannot connect.
	ErrDialFailed = errors.New("zeromq: dial failed")

	// ErrSubscribeFailed is returned when setting the subscription fails.
	ErrSubscribeFailed = errors.New("zeromq: subscribe failed")

	// ErrInvalidEndpoint is returned for a malformed endpoint.
	ErrInvalidEndpoint = errors.New("zeromq: invalid endpoint")

	// ErrNotConnected is returned when publishing on a closed publisher.
	ErrNotConnected = errors.New("zeromq: not connected")

	// ErrQueueFull is returned when the send queue has no room.
	ErrQueueFull = errors.New("zeromq: send queue full")

	// ErrEmptyTopic is returned when publishing without a topic.
	ErrEmptyTopic = errors.New("zeromq: topic must not be empty")
)
