// Package cache provides the bounded TTL cache used for history pages,
// user lookups, member lists and keyword match memoization. One eviction
// policy, stated once: entries expire after the TTL, and once the capacity
// is reached the oldest insertion is dropped.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a capacity- and TTL-bounded map. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[K]*list.Element
	order    *list.List // insertion order, oldest at front

	now func() time.Time // overridable in tests
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	addedAt time.Time
}

// Stats describes the current state of a cache instance.
type Stats struct {
	Entries  int
	Capacity int
	TTL      time.Duration
}

// New creates a cache holding at most capacity entries for at most ttl each.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[K]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.now().Sub(ent.addedAt) > c.ttl {
		c.removeLocked(el)
		return zero, false
	}
	return ent.value, true
}

// Set stores value under key, replacing any existing entry and refreshing
// its insertion time. Evicts the oldest entry when the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	for len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
	el := c.order.PushBack(&entry[K, V]{key: key, value: value, addedAt: c.now()})
	c.entries[key] = el
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Clear drops all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of live (possibly expired, not yet reaped) entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns entry count, capacity and TTL.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.entries), Capacity: c.capacity, TTL: c.ttl}
}

func (c *Cache[K, V]) removeLocked(el *list.Element) {
	ent := el.Value.(*entry[K, V])
	delete(c.entries, ent.key)
	c.order.Remove(el)
}
