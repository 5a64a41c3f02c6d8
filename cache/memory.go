package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is an in-memory cache implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	policy  Policy
	now     func() time.Time
}

type cacheEntry struct {
	value     []byte
	fetchedAt time.Time
	ttl       time.Duration
}

func (e *cacheEntry) fresh(now time.Time) bool {
	return now.Sub(e.fetchedAt) < e.ttl
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock replaces the wall clock used to stamp and age entries.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates a new in-memory cache with the given policy.
func NewMemoryCache(policy Policy, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*cacheEntry),
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the policy the cache was created with.
func (c *MemoryCache) Policy() Policy {
	return c.policy
}

// Get retrieves a value from the cache. Returns (nil, false) on miss or when
// the entry has reached its TTL.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !entry.fresh(c.now()) {
		c.mu.Lock()
		// Only drop the entry we looked at; a concurrent Set may have replaced it.
		if cur, ok := c.entries[key]; ok && cur == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// Age reports how long ago key was fetched. The second result is false when
// the key is absent, fresh or not.
func (c *MemoryCache) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return c.now().Sub(entry.fetchedAt), true
}

// Set stores a value with the given TTL, clamped by the policy.
// TTL=0 means no caching.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	ttl = c.policy.EffectiveTTL(ttl)

	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		value:     value,
		fetchedAt: c.now(),
		ttl:       ttl,
	}
	c.mu.Unlock()

	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including stale ones not yet
// evicted.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
