package monitor

// EdgeDetector reports rising edges of one bit of a status word.
//
// The first observation only sets the baseline. Not safe for concurrent
// use; the poll loop is its only caller.
type EdgeDetector struct {
	mask int
	prev int
	seen bool
}

// NewEdgeDetector watches bit (0 = least significant).
func NewEdgeDetector(bit uint) *EdgeDetector {
	return &EdgeDetector{mask: 1 << bit}
}

// Observe records value and reports whether the watched bit went 0→1.
func (e *EdgeDetector) Observe(value int) bool {
	fired := e.seen && e.prev&e.mask == 0 && value&e.mask != 0
	e.prev = value
	e.seen = true
	return fired
}

// Reset forgets the baseline.
func (e *EdgeDetector) Reset() {
	e.prev = 0
	e.seen = false
}
