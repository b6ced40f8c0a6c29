package simulator

import (
	"sync"
	"time"
)

// ManualClock is a clock that only moves when told to.
//
//	clock := simulator.NewManualClock(time.Unix(0, 0))
//	dev := simulator.New(simulator.WithClock(clock.Now))
//	clock.Advance(10 * time.Second)
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current clock time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
