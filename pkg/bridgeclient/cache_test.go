package bridgeclient

import (
	"testing"
	"time"
)

func TestResourceCacheReturnsStoredValue(t *testing.T) {
	cache := newResourceCache()
	cache.set("/v2/categories/5", "Restaurants", time.Minute)

	value, ok := cache.get("/v2/categories/5")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if value != "Restaurants" {
		t.Fatalf("expected %q, got %v", "Restaurants", value)
	}
}

func TestResourceCacheMissesUnknownKey(t *testing.T) {
	cache := newResourceCache()

	if _, ok := cache.get("/v2/categories/404"); ok {
		t.Fatal("expected a cache miss")
	}
}

func TestResourceCacheExpiresEntries(t *testing.T) {
	cache := newResourceCache()
	cache.set("/v2/banks/6", "Gringotts", time.Millisecond)

	time.Sleep(5 * time.Millisecond)

	if _, ok := cache.get("/v2/banks/6"); ok {
		t.Fatal("expected the entry to expire")
	}

	// A subsequent write sweeps the stale entry out of the map.
	cache.set("/v2/banks/7", "Iron Bank", time.Minute)
	cache.mutex.RLock()
	_, stale := cache.entries["/v2/banks/6"]
	cache.mutex.RUnlock()
	if stale {
		t.Fatal("expected the expired entry to be swept")
	}
}
