package enrich

import (
	"sync"
	"time"
)

// cache is an in-memory TTL cache for workpage lookups, so a wanted item
// polled every pass does not hammer the remote page.
type cache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	ttl      time.Duration
	maxItems int
}

type cacheItem struct {
	value     *WorkInfo
	expiresAt time.Time
}

func newCache(ttl time.Duration, maxItems int) *cache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if maxItems == 0 {
		maxItems = 1000
	}
	return &cache{
		items:    make(map[string]cacheItem),
		ttl:      ttl,
		maxItems: maxItems,
	}
}

func (c *cache) get(key string) (*WorkInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

// set stores a lookup result. Negative results (nil) are cached too, so a
// page with nothing useful is not re-fetched every pass.
func (c *cache) set(key string, value *WorkInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxItems {
		c.evictOldest()
	}
	c.items[key] = cacheItem{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// evictOldest removes the entry closest to expiry. Caller holds the lock.
func (c *cache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = item.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
