// Package cache provides an in-memory LRU cache with idle expiry. Time comes
// from an injected clock so expiry is deterministic under test.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/phrazzld/scry-decks/internal/platform/clock"
)

// TTL is an LRU cache whose entries expire after ttl without access.
// It is safe for concurrent use.
type TTL[K comparable, V any] struct {
	clock    clock.Clock
	ttl      time.Duration
	capacity int

	mu    sync.Mutex
	items map[K]*list.Element
	order *list.List // front is most recently used
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// NewTTL creates a cache holding at most capacity entries.
func NewTTL[K comparable, V any](c clock.Clock, ttl time.Duration, capacity int) *TTL[K, V] {
	if c == nil {
		panic("clock cannot be nil")
	}
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TTL[K, V]{
		clock:    c,
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value for key and refreshes its expiry.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	now := c.clock.Now()
	if !now.Before(e.expiresAt) {
		c.removeElement(el)
		return zero, false
	}

	e.expiresAt = now.Add(c.ttl)
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for len(c.items) >= c.capacity {
		c.removeElement(c.order.Back())
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
}

// Delete removes key and reports whether it was present.
func (c *TTL[K, V]) Delete(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	c.removeElement(el)
	return e.value, true
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sweep removes expired entries and returns them so callers can release
// resources they hold.
func (c *TTL[K, V]) Sweep() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	var expired []V
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry[K, V])
		if !now.Before(e.expiresAt) {
			expired = append(expired, e.value)
			c.removeElement(el)
		}
		el = prev
	}
	return expired
}

// removeElement must be called with the lock held.
func (c *TTL[K, V]) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*entry[K, V])
	c.order.Remove(el)
	delete(c.items, e.key)
}
