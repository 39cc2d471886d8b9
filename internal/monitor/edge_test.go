package monitor

import "testing"

func TestEdgeDetector_Observe(t *testing.T) {
	tests := []struct {
		name   string
		bit    uint
		values []int
		want   []bool
	}{
		{
			name:   "rising edges on bit 0",
			bit:    0,
			values: []int{0b00, 0b01, 0b01, 0b00, 0b01},
			want:   []bool{false, true, false, false, true},
		},
		{
			name:   "first observation is baseline",
			bit:    0,
			values: []int{1, 1, 0, 1},
			want:   []bool{false, false, false, true},
		},
		{
			name:   "other bits ignored",
			bit:    2,
			values: []int{0b000, 0b011, 0b111, 0b011, 0b100},
			want:   []bool{false, false, true, false, true},
		},
		{
			name:   "negative word",
			bit:    15,
			values: []int{0, -32768, 0},
			want:   []bool{false, true, false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEdgeDetector(tt.bit)
			for i, v := range tt.values {
				if got := e.Observe(v); got != tt.want[i] {
					t.Errorf("Observe(%#b) at step %d = %v, want %v", v, i, got, tt.want[i])
				}
			}
		})
	}
}

func TestEdgeDetector_Reset(t *testing.T) {
	e := NewEdgeDetector(0)
	e.Observe(0)
	e.Reset()
	if e.Observe(1) {
		t.Error("Observe() after Reset fired, want baseline")
	}
}
