package clock

import (
	"sync"
	"time"
)

var _ Clock = (*FakeClock)(nil)

// FakeClock is a manually driven Clock for tests. With a non-zero step every
// Now call advances the clock, so consecutive ledger entries get distinct
// timestamps.
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

// NewSteppingClock returns a FakeClock that moves forward by step after each read.
func NewSteppingClock(t time.Time, step time.Duration) *FakeClock {
	return &FakeClock{now: t.UTC(), step: step}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}
