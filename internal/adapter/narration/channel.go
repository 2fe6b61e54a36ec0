package narration

import "sync"

// Channel is an unbounded FIFO of narration lines. Push is safe from any
// goroutine; TryPop and Drain belong to the consuming stream session.
type Channel struct {
	mu    sync.Mutex
	items []string
	limit int
	ready chan struct{}
}

// NewChannel creates a channel. A positive limit caps the backlog by evicting
// the oldest line; zero means unbounded.
func NewChannel(limit int) *Channel {
	return &Channel{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends a line without blocking. It reports whether an old line was
// evicted to respect the backlog limit.
func (c *Channel) Push(line string) (evicted bool) {
	c.mu.Lock()
	if c.limit > 0 && len(c.items) >= c.limit {
		c.items[0] = ""
		c.items = c.items[1:]
		evicted = true
	}
	c.items = append(c.items, line)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return evicted
}

// TryPop removes and returns the oldest line, if any.
func (c *Channel) TryPop() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return "", false
	}
	line := c.items[0]
	c.items[0] = ""
	c.items = c.items[1:]
	if len(c.items) == 0 {
		c.items = nil
	}
	return line, true
}

// Drain empties the channel and returns how many lines were discarded.
func (c *Channel) Drain() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = nil
	select {
	case <-c.ready:
	default:
	}
	return n
}

// Len returns the current backlog.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Ready is signalled after a push. It is a wake-up hint, not a count.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}
