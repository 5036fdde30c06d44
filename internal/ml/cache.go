package ml

import (
	"context"
	"sync"
	"time"
)

// LoaderFunc materialises a Classifier for a cache key (model name, or
// name@version).
type LoaderFunc func(ctx context.Context, key string) (Classifier, error)

// Cache bounds loaded models by entry count and age. Invariants: at most
// capacity entries are resident, an entry older than ttl is never returned,
// and at most one load per key is in flight at a time; concurrent lookups
// for the same key share a single load.
type Cache struct {
	loader   LoaderFunc
	capacity int
	ttl      time.Duration

	mu       sync.Mutex
	entries  map[string]*cacheEntry
	inflight map[string]*loadCall

	now func() time.Time
}

type cacheEntry struct {
	classifier Classifier
	expiresAt  time.Time
	lastAccess time.Time
}

type loadCall struct {
	wg         sync.WaitGroup
	classifier Classifier
	err        error
}

// NewCache constructs a Cache over loader.
func NewCache(capacity int, ttl time.Duration, loader LoaderFunc) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		loader:   loader,
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*cacheEntry),
		inflight: make(map[string]*loadCall),
		now:      time.Now,
	}
}

// Get returns the cached classifier for key, loading it on miss or expiry.
func (c *Cache) Get(ctx context.Context, key string) (Classifier, error) {
	c.mu.Lock()

	if entry, ok := c.entries[key]; ok {
		if c.now().Before(entry.expiresAt) {
			entry.lastAccess = c.now()
			cls := entry.classifier
			c.mu.Unlock()
			return cls, nil
		}
		delete(c.entries, key)
	}

	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		call.wg.Wait()
		return call.classifier, call.err
	}

	call := &loadCall{}
	call.wg.Add(1)
	c.inflight[key] = call
	c.mu.Unlock()

	call.classifier, call.err = c.loader(ctx, key)

	c.mu.Lock()
	delete(c.inflight, key)
	if call.err == nil {
		c.evictIfFull()
		c.entries[key] = &cacheEntry{
			classifier: call.classifier,
			expiresAt:  c.now().Add(c.ttl),
			lastAccess: c.now(),
		}
	}
	c.mu.Unlock()

	call.wg.Done()
	return call.classifier, call.err
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// evictIfFull removes the least recently used entry. Caller holds mu.
func (c *Cache) evictIfFull() {
	if len(c.entries) < c.capacity {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
