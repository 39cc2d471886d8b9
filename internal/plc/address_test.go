package plc

import (
	"errors"
	"testing"
)

func TestAddressMap_Resolve(t *testing.T) {
	m := DefaultAddressMap()

	tests := []struct {
		input  string
		area   Area
		offset uint16
		number int
	}{
		{"D0", AreaHoldingRegister, 0, 0},
		{"D10", AreaHoldingRegister, 10, 10},
		{"D8008", AreaHoldingRegister, 8008, 8008},
		{"d8008", AreaHoldingRegister, 8008, 8008},
		{"M0", AreaCoil, 8192, 0},
		{"M100", AreaCoil, 8292, 100},
		{"Y0", AreaCoil, 0, 0},
		{"Y1F", AreaCoil, 31, 31},
		{"X10", AreaDiscreteInput, 16, 16},
		{"W1A", AreaHoldingRegister, 12288 + 26, 26},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := m.Resolve(tt.input)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.input, err)
			}
			if got.Area != tt.area || got.Offset != tt.offset || got.Number != tt.number {
				t.Errorf("Resolve(%q) = %+v, want area=%v offset=%d number=%d",
					tt.input, got, tt.area, tt.offset, tt.number)
			}
		})
	}
}

func TestAddressMap_ResolveInvalid(t *testing.T) {
	m := DefaultAddressMap()

	for _, input := range []string{"", "0", "D", "Q10", "DX", "M12G", "D70000", "R65535"} {
		if _, err := m.Resolve(input); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidAddress", input, err)
		}
	}
}

func TestParseArea(t *testing.T) {
	tests := []struct {
		input string
		want  Area
	}{
		{"coil", AreaCoil},
		{"Discrete", AreaDiscreteInput},
		{"holding_register", AreaHoldingRegister},
		{"input", AreaInputRegister},
	}
	for _, tt := range tests {
		got, err := ParseArea(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseArea(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
	}
	if _, err := ParseArea("bogus"); err == nil {
		t.Error("ParseArea(bogus) should fail")
	}
}
