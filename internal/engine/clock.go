package engine

import "sync/atomic"

// Clock is a monotonic logical clock for commit ordering.
//
// Every committed transaction is stamped with a strictly increasing seq
// number. Ordering by seq is deterministic: no wall-clock timestamps, no
// race between commits in the same millisecond.
//
// Thread-safety: atomic operations, though the engine's single-writer
// design means only one goroutine normally calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used when resuming from a persisted commit journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
