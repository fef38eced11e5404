package gpio

import "time"

// MonotonicCounter implements Counter on the Go monotonic clock.
// Counts are 64-bit microseconds, so the counter cannot wrap in practice.
type MonotonicCounter struct {
	start time.Time
	now   func() time.Time
}

// NewMonotonicCounter creates a counter that starts at zero.
func NewMonotonicCounter() *MonotonicCounter {
	return newMonotonicCounter(time.Now)
}

func newMonotonicCounter(now func() time.Time) *MonotonicCounter {
	return &MonotonicCounter{start: now(), now: now}
}

// Count returns the microseconds elapsed since the last Reset.
func (c *MonotonicCounter) Count() uint64 {
	d := c.now().Sub(c.start)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Microsecond)
}

// Reset restarts counting from zero.
func (c *MonotonicCounter) Reset() {
	c.start = c.now()
}
