// Package progress converts completed/total counts into whole percentages
// and keeps the shared counters that drive progress display.
package progress

import (
	"math"
	"sync"
)

// Percent returns round(completed/total*100) clamped to [0, 100].
// A non-positive total means there is nothing to do, which is 100%.
func Percent(completed, total int) int {
	if total <= 0 {
		return 100
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Counter is a monotonically increasing completed/total pair.
// It is safe for concurrent use.
type Counter struct {
	mu        sync.Mutex
	total     int
	completed int
	onChange  func(completed, total, percent int)
}

// NewCounter returns a counter over total units. onChange may be nil;
// it is called after every Increment and Reset.
func NewCounter(total int, onChange func(completed, total, percent int)) *Counter {
	return &Counter{total: total, onChange: onChange}
}

// Increment records one more completed unit and returns the new percentage.
func (c *Counter) Increment() int {
	c.mu.Lock()
	c.completed++
	completed, total := c.completed, c.total
	fn := c.onChange
	c.mu.Unlock()

	p := Percent(completed, total)
	if fn != nil {
		fn(completed, total, p)
	}
	return p
}

// Reset zeroes the counter and sets a new total.
func (c *Counter) Reset(total int) {
	c.mu.Lock()
	c.total = total
	c.completed = 0
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(0, total, Percent(0, total))
	}
}

// Percent returns the current percentage.
func (c *Counter) Percent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Percent(c.completed, c.total)
}

// Counts returns the completed and total units.
func (c *Counter) Counts() (completed, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed, c.total
}
