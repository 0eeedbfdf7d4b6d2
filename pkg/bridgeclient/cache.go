/**
 * @description
 * In-memory TTL cache for Bridge reference resources (category names, bank
 * information). Entries are keyed by resource URI and expire after a fixed
 * TTL; concurrent readers may race to repopulate the same key, which is
 * acceptable because the cached value is a stable display name.
 */
package bridgeclient

import (
	"sync"
	"time"
)

// resourceCacheTTL is how long a resolved resource stays valid.
const resourceCacheTTL = 24 * time.Hour

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

type resourceCache struct {
	mutex   sync.RWMutex
	entries map[string]cacheEntry
}

func newResourceCache() *resourceCache {
	return &resourceCache{entries: make(map[string]cacheEntry)}
}

func (c *resourceCache) get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *resourceCache) set(key string, value interface{}, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Drop expired entries opportunistically to prevent unbounded growth.
	now := time.Now()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(ttl)}
}
