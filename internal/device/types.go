package device

import "maps"

// Type is the data width of a controller point.
type Type string

// Device types.
const (
	TypeWord Type = "Word"
	TypeBit  Type = "Bit"
)

// AllTypes returns every supported device type.
func AllTypes() []Type {
	return []Type{TypeWord, TypeBit}
}

// Accepts reports whether value may be written to a device of this type.
// Bit devices accept only 0 and 1; word devices accept anything the
// controller does.
func (t Type) Accepts(value int) bool {
	if t == TypeBit {
		return value == 0 || value == 1
	}
	return true
}

// Device is one monitored controller point.
type Device struct {
	// Address is the controller device address, e.g. "D100" or "M0".
	// Unique within the registry.
	Address string `json:"address"`

	// Name is the display name.
	Name string `json:"name"`

	// Type is Word or Bit.
	Type Type `json:"type"`

	// Value is the last observed value. Zero until the first read.
	Value int `json:"value"`

	// Topics holds the precomputed publish topic per bus ("mqtt", "zmq").
	Topics map[string]string `json:"topics,omitempty"`
}

// Topic returns the cached publish topic for a bus, or "".
func (d Device) Topic(bus string) string {
	return d.Topics[bus]
}

// Clone returns a copy that shares no mutable state with d.
func (d *Device) Clone() Device {
	out := *d
	if d.Topics != nil {
		out.Topics = maps.Clone(d.Topics)
	}
	return out
}
