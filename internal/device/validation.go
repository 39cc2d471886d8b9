package device

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxNameLength    = 100
	maxAddressLength = 16
)

// ParseType converts a configuration string into a Type.
// Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes() {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDeviceType, s)
}

// ValidateDevice checks that a device definition is usable.
// It does not check the address against a controller address map.
func ValidateDevice(d Device) error {
	if d.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidDevice)
	}
	if len(d.Address) > maxAddressLength {
		return fmt.Errorf("%w: address %q exceeds %d characters", ErrInvalidDevice, d.Address, maxAddressLength)
	}
	if strings.ContainsAny(d.Address, "/+# \t") {
		return fmt.Errorf("%w: address %q contains topic characters", ErrInvalidDevice, d.Address)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name for %s exceeds %d characters", ErrInvalidDevice, d.Address, maxNameLength)
	}
	if d.Type != TypeWord && d.Type != TypeBit {
		return fmt.Errorf("%w: %q for %s", ErrInvalidDeviceType, d.Type, d.Address)
	}
	return nil
}

// ValidateValue checks value against the device type.
func ValidateValue(d Device, value int) error {
	if !d.Type.Accepts(value) {
		return fmt.Errorf("%w: %s is a %s device, got %d", ErrInvalidValue, d.Address, d.Type, value)
	}
	return nil
}
