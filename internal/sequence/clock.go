package sequence

import "sync/atomic"

// Clock is the monotonic logical clock that stamps trace events.
//
// Every event carries a strictly increasing seq, so a journaled trace
// replays in exactly the order the run produced it, independent of wall
// time. The runner is single-threaded, but the atomic keeps the clock safe
// if a sink inspects it from another goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock starting at 0; the first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock resuming from a known position, used when
// appending to an existing journaled run.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments and returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock position without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
