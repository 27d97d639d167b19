package isolation

import (
	"context"
	"sync"
	"time"
)

// #region config

// CacheConfig bounds the resident-user model cache.
type CacheConfig struct {
	MaxUsers  int           // hard cap enforced on insert (default 1000)
	TTL       time.Duration // idle time before the sweep evicts an entry (default 30m)
	HighWater int           // post-sweep occupancy that triggers LRU eviction (default MaxUsers)
	LowWater  int           // LRU eviction target (default 80% of MaxUsers)

	Now func() time.Time // injectable clock for tests; nil means time.Now
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.MaxUsers <= 0 {
		c.MaxUsers = 1000
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.HighWater <= 0 || c.HighWater > c.MaxUsers {
		c.HighWater = c.MaxUsers
	}
	if c.LowWater <= 0 || c.LowWater > c.HighWater {
		c.LowWater = c.MaxUsers * 8 / 10
		if c.LowWater < 1 {
			c.LowWater = 1
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// #endregion

// #region cache

// Cache lazily constructs one value per user id from a template factory and
// keeps at most MaxUsers resident. Eviction drops in-memory state only; the
// owner reloads evicted models through persistence on next access.
//
// The cache itself is safe for concurrent use, but a cached value must only
// be touched while holding that user's keyed-mutex lock.
type Cache[T any] struct {
	cfg     CacheConfig
	factory func(userID string) T

	mu      sync.Mutex
	entries map[string]*cacheEntry[T]
}

type cacheEntry[T any] struct {
	value      T
	lastAccess time.Time
}

// NewCache creates a cache over the given factory.
func NewCache[T any](cfg CacheConfig, factory func(userID string) T) *Cache[T] {
	return &Cache[T]{
		cfg:     cfg.withDefaults(),
		factory: factory,
		entries: make(map[string]*cacheEntry[T]),
	}
}

// Get returns the user's cached value, constructing it from the factory on
// first access. Inserting past MaxUsers evicts least-recently-accessed
// entries first; the fresh entry is never the victim.
func (c *Cache[T]) Get(userID string) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[userID]; ok {
		e.lastAccess = c.cfg.Now()
		return e.value
	}

	e := &cacheEntry[T]{value: c.factory(userID), lastAccess: c.cfg.Now()}
	c.entries[userID] = e
	c.evictLRULocked(c.cfg.MaxUsers)
	return e.value
}

// Peek returns the cached value without constructing or touching recency.
func (c *Cache[T]) Peek(userID string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[userID]; ok {
		return e.value, true
	}
	var zero T
	return zero, false
}

// Remove drops one user's entry.
func (c *Cache[T]) Remove(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Len returns the resident-user count.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep evicts entries idle past the TTL; if occupancy still exceeds the
// high-water mark afterwards, least-recently-accessed entries go until the
// low-water mark is reached. Returns how many entries were evicted.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.entries)
	cutoff := c.cfg.Now().Add(-c.cfg.TTL)
	for id, e := range c.entries {
		if e.lastAccess.Before(cutoff) {
			delete(c.entries, id)
		}
	}
	if len(c.entries) > c.cfg.HighWater {
		c.evictLRULocked(c.cfg.LowWater)
	}
	return before - len(c.entries)
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (c *Cache[T]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// evictLRULocked removes least-recently-accessed entries until at most limit
// remain.
func (c *Cache[T]) evictLRULocked(limit int) {
	for len(c.entries) > limit {
		oldestID := ""
		var oldest time.Time
		for id, e := range c.entries {
			if oldestID == "" || e.lastAccess.Before(oldest) {
				oldestID = id
				oldest = e.lastAccess
			}
		}
		delete(c.entries, oldestID)
	}
}

// #endregion
