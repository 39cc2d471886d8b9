package mqtt

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrConnectionFailed wraps a failed or timed-out initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned by operations on a closed or
	// disconnected client. Sinks treat it as a skipped publish.
	ErrNotConnected = errors.New("mqtt: client not connected")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrTimeout is joined with ErrPublishFailed when the broker does not
	// acknowledge within mqtt.publish_timeout_ms.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrInvalidQoS is returned for a QoS other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
