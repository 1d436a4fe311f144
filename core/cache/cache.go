// Package cache provides an in-memory LRU cache with per-entry TTL, used to
// short-circuit repeat synchronous requests. Expired entries are absent on
// lookup and reclaimed either lazily on Get or by the periodic sweeper.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a fixed-capacity LRU cache with per-entry expiry. All methods are
// safe for concurrent use. The zero value is not usable; construct with [New].
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	entries  map[string]*list.Element

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// entry is the value stored in the eviction list.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// New creates a Cache holding at most capacity entries, each valid for ttl
// from insertion. A capacity below 1 is treated as 1; a non-positive ttl means
// entries never expire.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}

	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the value stored under key. An expired entry counts as a miss
// and is removed on the spot.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	stored := element.Value.(*entry[V])

	if c.expired(stored, time.Now()) {
		c.removeElement(element)
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.hits.Add(1)
	return stored.value, true
}

// Put stores value under key, resetting its TTL. When the cache is full the
// least recently used entry is evicted.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if element, ok := c.entries[key]; ok {
		stored := element.Value.(*entry[V])
		stored.value = value
		stored.expiresAt = expiresAt
		c.order.MoveToFront(element)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeElement(oldest)
			c.evictions.Add(1)
		}
	}

	c.entries[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.removeElement(element)
	}
}

// Len returns the number of stored entries, including any not yet swept
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := c.order.Len()
	c.mu.Unlock()

	return Stats{
		Entries:   entries,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// StartSweeper launches a goroutine that removes expired entries every
// interval until ctx is cancelled. Sweeping is an optimization: expired
// entries are already invisible to Get.
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep(time.Now())
			}
		}
	}()
}

// sweep removes every entry that has expired as of now.
func (c *Cache[V]) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for element := c.order.Back(); element != nil; {
		previous := element.Prev()

		if c.expired(element.Value.(*entry[V]), now) {
			c.removeElement(element)
		}

		element = previous
	}
}

// expired reports whether the entry's TTL has elapsed.
func (c *Cache[V]) expired(stored *entry[V], now time.Time) bool {
	return !stored.expiresAt.IsZero() && now.After(stored.expiresAt)
}

// removeElement unlinks an element from both the list and the index map.
// Caller must hold c.mu.
func (c *Cache[V]) removeElement(element *list.Element) {
	c.order.Remove(element)
	delete(c.entries, element.Value.(*entry[V]).key)
}
