package stream

import (
	"fmt"
	"sync"
	"time"
)

// dedupCache suppresses identical ticks seen within a short TTL. The
// channel re-sends the same (last, bid, ask) tuple on every book touch.
type dedupCache struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
	order   []string // insertion order for size eviction
}

func newDedupCache(ttl time.Duration, maxSize int) *dedupCache {
	return &dedupCache{
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// isDuplicate reports whether this exact tick was seen within the TTL,
// recording it if not.
func (c *dedupCache) isDuplicate(tokenID string, last, bid, ask float64) bool {
	key := fmt.Sprintf("%s:%g:%g:%g", tokenID, last, bid, ask)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked(now)

	if _, seen := c.entries[key]; seen {
		return true
	}

	c.entries[key] = now
	c.order = append(c.order, key)

	for len(c.entries) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	return false
}

func (c *dedupCache) evictExpiredLocked(now time.Time) {
	kept := c.order[:0]
	for _, key := range c.order {
		at, ok := c.entries[key]
		if !ok {
			continue
		}
		if now.Sub(at) > c.ttl {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}
