// Package cache provides a small string-keyed cache with time-to-live expiry.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	savedAt time.Time
}

// TTL caches values for a fixed duration. Expiry is lazy: entries are dropped
// when read past their deadline, plus whatever Purge removes.
type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

// NewTTL builds an empty cache; a non-positive ttl disables caching entirely.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value when present and fresh.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.savedAt) > c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key, replacing any previous entry.
func (c *TTL[V]) Set(key string, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, savedAt: c.now()}
	c.mu.Unlock()
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTL[V]) Purge() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if c.now().Sub(e.savedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *TTL[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
