package quota

import (
	"context"
	"sync"
)

// MemoryCounter keeps the count in process memory. A restart resets it.
type MemoryCounter struct {
	mu    sync.Mutex
	day   string
	count int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

// roll zeroes the counter when day is later than the stored marker. Day keys
// are YYYY-MM-DD so string order is date order. A clock moving backwards
// never resets the count.
func (c *MemoryCounter) roll(day string) {
	if day > c.day {
		c.day = day
		c.count = 0
	}
}

func (c *MemoryCounter) Count(_ context.Context, day string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roll(day)
	return c.count, nil
}

func (c *MemoryCounter) Add(_ context.Context, day string, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roll(day)
	c.count += n
	return c.count, nil
}
