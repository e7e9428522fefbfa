package engine

import "sync/atomic"

// Clock is the monotonic logical clock that numbers selections.
//
// Every selected event is stamped with a strictly increasing seq. Recorded
// runs are ordered by seq, never by wall-clock time, so a replay of the
// same triggers against the same program reproduces the same numbering.
//
// Clock is safe for concurrent use, although only the goroutine draining
// the trigger queue calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
