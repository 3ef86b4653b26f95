package search

import (
	"sync"
	"time"
)

// cache keeps search responses for a fixed time
type cache struct {
	data map[string]cacheEntry
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	results    []Result
	expiration time.Time
}

func newCache(ttl time.Duration) *cache {
	return &cache{
		data: make(map[string]cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (c *cache) get(key string) ([]Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || c.now().After(entry.expiration) {
		return nil, false
	}
	return entry.results, true
}

// set stores results and drops expired entries
func (c *cache) set(key string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, k)
		}
	}
	c.data[key] = cacheEntry{results: results, expiration: now.Add(c.ttl)}
}
