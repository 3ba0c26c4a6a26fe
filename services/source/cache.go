package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// CacheStats is the admin-facing snapshot of the cache.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache is a TTL memoizer for aggregate query results. Values are treated
// as immutable once stored; concurrent readers share them. Empty results
// are cached like any other, so repeatedly-empty queries hit upstream no
// more often than the TTL allows.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	hits    uint64
	misses  uint64
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached value for key, evicting it lazily if expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return e.value, true
}

// Set stores value under key for ttl. Last writer wins.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Sweep removes expired entries. Callers may run it on a ticker; lookups
// already evict lazily, so sweeping only bounds memory.
func (c *Cache) Sweep() {
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Stats returns a snapshot for the admin endpoint.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// cacheKey builds a stable key from the operation name and its parameters.
// Parameters marshal to JSON so every field, including pagination and
// source lists, participates in the key.
func cacheKey(op string, params ...any) string {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range params {
		b.WriteByte(':')
		raw, err := json.Marshal(p)
		if err != nil {
			b.WriteString(fmt.Sprintf("%v", p))
			continue
		}
		b.Write(raw)
	}
	return b.String()
}
