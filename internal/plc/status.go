package plc

import "fmt"

// Status is the numeric result code of a controller call.
// Zero means success.
type Status int

// Status codes reported by the controller driver.
const (
	StatusOK              Status = 0
	StatusConfigMissing   Status = 0x01800001
	StatusConfigRead      Status = 0x01800002
	StatusOutOfMemory     Status = 0x01800003
	StatusAlreadyOpen     Status = 0x01800004
	StatusNotOpen         Status = 0x01800005
	StatusSyncError       Status = 0x01800006
	StatusTimeout         Status = 0x01800010
	StatusLinkFailure     Status = 0x01800011
	StatusInvalidAddress  Status = 0x01802001
	StatusRejected        Status = 0x01802002
	StatusValueOutOfRange Status = 0x01802003
)

var statusMessages = map[Status]string{
	StatusOK:              "OK",
	StatusConfigMissing:   "communication settings file not found",
	StatusConfigRead:      "communication settings could not be read",
	StatusOutOfMemory:     "out of memory",
	StatusAlreadyOpen:     "connection already open",
	StatusNotOpen:         "connection not open",
	StatusSyncError:       "synchronisation error",
	StatusTimeout:         "communication timeout",
	StatusLinkFailure:     "connection failed",
	StatusInvalidAddress:  "invalid device address",
	StatusRejected:        "request rejected by controller",
	StatusValueOutOfRange: "value out of range for device",
}

// OK reports whether the call succeeded.
func (s Status) OK() bool {
	return s == StatusOK
}

// IsConnectionLost reports whether the status means the controller session
// is no longer usable. Such statuses force the Link to Disconnected.
func (s Status) IsConnectionLost() bool {
	switch s {
	case StatusTimeout, StatusLinkFailure, StatusNotOpen:
		return true
	default:
		return false
	}
}

// Message returns the human-readable text for the status.
// Unknown codes are rendered in hex.
func (s Status) Message() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("error code: 0x%08X", uint32(s)) //nolint:gosec // codes are 32-bit driver values
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return s.Message()
}
