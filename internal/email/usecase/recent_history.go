package usecase

import "sync"

// DefaultRecentIDCapacity bounds the recent-id cache when no capacity is configured.
const DefaultRecentIDCapacity = 1000

// RecentIDCache remembers the most recently processed message ids in
// insertion order and evicts the oldest once full. It is a fast path only;
// the log repository stays authoritative.
type RecentIDCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

func NewRecentIDCache(capacity int) *RecentIDCache {
	if capacity <= 0 {
		capacity = DefaultRecentIDCapacity
	}
	return &RecentIDCache{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

func (c *RecentIDCache) IsSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// Add records id. Adding an id already present keeps its original position.
func (c *RecentIDCache) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	c.order = append(c.order, id)
	c.seen[id] = struct{}{}
}

func (c *RecentIDCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
