package barcode

import "errors"

// Domain errors for the barcode package.
var (
	// ErrNotConnected is returned when no connection is open and
	// auto-reconnect is disabled.
	ErrNotConnected = errors.New("barcode: not connected")

	// ErrConnectionFailed is returned when dialling the reader fails.
	ErrConnectionFailed = errors.New("barcode: connection failed")

	// ErrSendFailed is returned when writing a command fails.
	ErrSendFailed = errors.New("barcode: send failed")

	// ErrInvalidConfig is returned for an unusable Config.
	ErrInvalidConfig = errors.New("barcode: invalid config")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("barcode: client closed")
)
