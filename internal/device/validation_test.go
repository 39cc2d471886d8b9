package device

import (
	"errors"
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"Word", TypeWord, false},
		{"word", TypeWord, false},
		{"BIT", TypeBit, false},
		{"Float", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseType(%q) = %q, %v", tt.input, got, err)
		}
	}
}

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name    string
		dev     Device
		wantErr error
	}{
		{"valid word", Device{Address: "D0", Type: TypeWord}, nil},
		{"valid bit", Device{Address: "M0", Name: "Run", Type: TypeBit}, nil},
		{"missing address", Device{Type: TypeWord}, ErrInvalidDevice},
		{"topic separator", Device{Address: "D0/set", Type: TypeWord}, ErrInvalidDevice},
		{"wildcard", Device{Address: "D+", Type: TypeWord}, ErrInvalidDevice},
		{"long name", Device{Address: "D0", Name: strings.Repeat("x", 101), Type: TypeWord}, ErrInvalidDevice},
		{"bad type", Device{Address: "D0", Type: "Dword"}, ErrInvalidDeviceType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDevice(tt.dev)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ValidateDevice() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateDevice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateValue(t *testing.T) {
	bit := Device{Address: "M0", Type: TypeBit}
	word := Device{Address: "D0", Type: TypeWord}

	for _, v := range []int{0, 1} {
		if err := ValidateValue(bit, v); err != nil {
			t.Errorf("bit accepts %d: %v", v, err)
		}
	}
	for _, v := range []int{2, -1, 255} {
		if err := ValidateValue(bit, v); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("bit value %d error = %v, want ErrInvalidValue", v, err)
		}
	}
	for _, v := range []int{-32768, 0, 2, 65535} {
		if err := ValidateValue(word, v); err != nil {
			t.Errorf("word rejects %d: %v", v, err)
		}
	}
}
