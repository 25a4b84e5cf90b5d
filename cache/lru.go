// Package cache provides a bounded in-memory key-value cache with strict
// least-recently-used eviction and hit/miss accounting. It has no knowledge
// of the persistent store it fronts.
package cache

import (
	"bytes"
	"container/list"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrInvalidCapacity is returned by New when capacity is less than 1.
var ErrInvalidCapacity = errors.New("cache: capacity must be at least 1")

// entry is the payload stored in each recency-list element. The list runs
// from most- to least-recently-used, front to back.
type entry struct {
	key string
	val []byte
}

// LRU is a capacity-bounded cache. A single mutex serializes all operations;
// each call is linearizable on its own, multi-call sequences are not. The
// hit/miss counters are atomics so observers never block mutators.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an LRU holding at most capacity entries.
func New(capacity int) (*LRU, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}, nil
}

// Get returns the value stored under key. On a hit the entry becomes the
// most-recently-used and the hit counter is incremented; on a miss the miss
// counter is incremented. The returned slice is a copy.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits.Add(1)
	return bytes.Clone(el.Value.(*entry).val), true
}

// Put inserts or overwrites the value under key and marks it
// most-recently-used. When the cache is full the least-recently-used entry
// is evicted before the insert.
func (c *LRU) Put(key string, val []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).val = bytes.Clone(val)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		last := c.order.Back()
		delete(c.items, last.Value.(*entry).key)
		c.order.Remove(last)
	}

	c.items[key] = c.order.PushFront(&entry{key: key, val: bytes.Clone(val)})
}

// Erase removes the entry for key if present. Removing an absent key is a
// no-op.
func (c *LRU) Erase(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.items, key)
}

// Clear removes every entry and resets the hit/miss counters to zero.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	clear(c.items)
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len returns the current number of entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *LRU) Capacity() int {
	return c.capacity
}

// Hits returns the number of successful lookups since creation or the last
// Clear.
func (c *LRU) Hits() uint64 {
	return c.hits.Load()
}

// Misses returns the number of failed lookups since creation or the last
// Clear.
func (c *LRU) Misses() uint64 {
	return c.misses.Load()
}
