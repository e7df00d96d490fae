package service

import "time"

// Clock abstracts "now" so the expiry sweep, urgency scoring and eat-by
// computation stay deterministic under test
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewClock returns the wall clock
func NewClock() Clock { return realClock{} }

// FrozenClock is a Clock pinned to a settable instant
type FrozenClock struct {
	Instant time.Time
}

func (c *FrozenClock) Now() time.Time { return c.Instant }

// Advance moves the frozen clock forward
func (c *FrozenClock) Advance(d time.Duration) { c.Instant = c.Instant.Add(d) }
