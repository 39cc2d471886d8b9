package plc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Area is the Modbus data table a device range is mapped onto.
type Area int

// Modbus data tables.
const (
	AreaCoil Area = iota
	AreaDiscreteInput
	AreaHoldingRegister
	AreaInputRegister
)

// String implements fmt.Stringer.
func (a Area) String() string {
	switch a {
	case AreaCoil:
		return "coil"
	case AreaDiscreteInput:
		return "discrete"
	case AreaHoldingRegister:
		return "holding"
	case AreaInputRegister:
		return "input"
	default:
		return "unknown"
	}
}

// IsBit reports whether the area holds single bits.
func (a Area) IsBit() bool {
	return a == AreaCoil || a == AreaDiscreteInput
}

// Writable reports whether the area accepts writes.
func (a Area) Writable() bool {
	return a == AreaCoil || a == AreaHoldingRegister
}

// ParseArea converts a config name into an Area.
func ParseArea(s string) (Area, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coil", "coils":
		return AreaCoil, nil
	case "discrete", "discrete_input", "discrete_inputs":
		return AreaDiscreteInput, nil
	case "holding", "holding_register", "holding_registers":
		return AreaHoldingRegister, nil
	case "input", "input_register", "input_registers":
		return AreaInputRegister, nil
	default:
		return 0, fmt.Errorf("%w: unknown area %q", ErrInvalidAddress, s)
	}
}

// Mapping places one device letter range in a Modbus table.
type Mapping struct {
	Area Area
	Base uint16
	Hex  bool // device numbers are hexadecimal (X, Y, B, W)
}

// AddressMap maps device letters to Modbus tables.
type AddressMap map[string]Mapping

// DefaultAddressMap returns the MELSEC-to-Modbus allocation used when the
// configuration does not override it.
func DefaultAddressMap() AddressMap {
	return AddressMap{
		"Y": {Area: AreaCoil, Base: 0, Hex: true},
		"M": {Area: AreaCoil, Base: 8192},
		"L": {Area: AreaCoil, Base: 16384},
		"B": {Area: AreaCoil, Base: 24576, Hex: true},
		"X": {Area: AreaDiscreteInput, Base: 0, Hex: true},
		"D": {Area: AreaHoldingRegister, Base: 0},
		"W": {Area: AreaHoldingRegister, Base: 12288, Hex: true},
		"R": {Area: AreaHoldingRegister, Base: 20480},
	}
}

// Address is a resolved device address.
type Address struct {
	Device string
	Number int
	Area   Area
	Offset uint16
}

// Resolve parses a device address such as "D8008" or "X1F" and places it
// in its Modbus table.
func (m AddressMap) Resolve(address string) (Address, error) {
	s := strings.ToUpper(strings.TrimSpace(address))
	split := strings.IndexFunc(s, func(r rune) bool { return r < 'A' || r > 'Z' })
	if split <= 0 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	dev, digits := s[:split], s[split:]
	mapping, ok := m[dev]
	if !ok {
		return Address{}, fmt.Errorf("%w: unsupported device %q in %q (supported: %s)",
			ErrInvalidAddress, dev, address, strings.Join(m.devices(), ", "))
	}

	base := 10
	if mapping.Hex {
		base = 16
	}
	n, err := strconv.ParseUint(digits, base, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}

	offset := uint64(mapping.Base) + n
	if offset > 0xFFFF {
		return Address{}, fmt.Errorf("%w: %q maps beyond the Modbus table", ErrInvalidAddress, address)
	}

	return Address{
		Device: dev,
		Number: int(n),
		Area:   mapping.Area,
		Offset: uint16(offset),
	}, nil
}

func (m AddressMap) devices() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
