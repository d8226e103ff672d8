package engine

import "sync/atomic"

// Clock is the logical clock that stamps divergence records.
//
// Sequence numbers are strictly increasing within one engine, so records
// sort the same way on every replay regardless of wall time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
