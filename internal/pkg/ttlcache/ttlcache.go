// Package ttlcache provides a size-bounded map whose entries expire a fixed
// duration after they were written. Expiry is checked on read; there is no
// background sweep.
package ttlcache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// DefaultSize bounds the number of live entries when no size is given
const DefaultSize = 4096

type entry[V any] struct {
	value    V
	storedAt time.Time
	// version orders writes; Set uses the write time
	version time.Time
}

// Cache is safe for concurrent use. Set always wins; SetIfNewer only wins
// over entries with an older version.
type Cache[K comparable, V any] struct {
	ttl     time.Duration
	clock   clockwork.Clock
	entries *lru.Cache[K, entry[V]]

	mu sync.Mutex
}

// New creates a cache. A nil clock uses wall time.
func New[K comparable, V any](ttl time.Duration, size int, clock clockwork.Clock) (*Cache[K, V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttlcache: ttl must be positive, got %s", ttl)
	}
	if size <= 0 {
		size = DefaultSize
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	entries, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("ttlcache: %w", err)
	}
	return &Cache[K, V]{ttl: ttl, clock: clock, entries: entries}, nil
}

// Get returns the value for key if it was written less than TTL ago
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if c.clock.Since(e.storedAt) >= c.ttl {
		return zero, false
	}
	return e.value, true
}

// GetWithTime is Get that also reports the entry's version
func (c *Cache[K, V]) GetWithTime(key K) (V, time.Time, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok || c.clock.Since(e.storedAt) >= c.ttl {
		return zero, time.Time{}, false
	}
	return e.value, e.version, true
}

// Set overwrites the entry for key and resets its age
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.entries.Add(key, entry[V]{value: value, storedAt: now, version: now})
}

// SetIfNewer stores value unless a live entry carries a later version. It
// reports whether value was stored.
func (c *Cache[K, V]) SetIfNewer(key K, value V, version time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if e, ok := c.entries.Peek(key); ok && now.Sub(e.storedAt) < c.ttl && e.version.After(version) {
		return false
	}
	c.entries.Add(key, entry[V]{value: value, storedAt: now, version: version})
	return true
}

// Delete drops a single entry
func (c *Cache[K, V]) Delete(key K) {
	c.entries.Remove(key)
}

// Purge drops every entry
func (c *Cache[K, V]) Purge() {
	c.entries.Purge()
}
