package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func mustNew(t *testing.T, capacity int) *LRU {
	t.Helper()
	c, err := New(capacity)
	if err != nil {
		t.Fatalf("New(%d): %v", capacity, err)
	}
	return c
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := New(capacity); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("New(%d): got %v, want ErrInvalidCapacity", capacity, err)
		}
	}
}

func TestGetPut(t *testing.T) {
	c := mustNew(t, 2)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("k1", []byte("v1"))
	v, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(v) != "v1" {
		t.Fatalf("got %q, want %q", v, "v1")
	}

	// Overwrite in place.
	c.Put("k1", []byte("v2"))
	v, _ = c.Get("k1")
	if string(v) != "v2" {
		t.Fatalf("got %q, want %q", v, "v2")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestReturnedValueIsACopy(t *testing.T) {
	c := mustNew(t, 1)
	c.Put("k", []byte("abc"))

	v, _ := c.Get("k")
	v[0] = 'x'

	again, _ := c.Get("k")
	if string(again) != "abc" {
		t.Fatalf("cached value mutated through returned slice: %q", again)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity = 8
	c := mustNew(t, capacity)

	for i := range 100 {
		c.Put(fmt.Sprintf("k%d", i), []byte("v"))
		if n := c.Len(); n > capacity {
			t.Fatalf("Len = %d exceeds capacity %d after %d puts", n, capacity, i+1)
		}
	}
	if c.Len() != capacity {
		t.Fatalf("Len = %d, want %d", c.Len(), capacity)
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	c := mustNew(t, 2)

	// put(a), put(b), put(c) with capacity 2 evicts a.
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b should still be cached")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("c should still be cached")
	}

	// get(b) refreshed b, so put(d) must evict c.
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b should still be cached")
	}
	c.Put("d", []byte("4"))

	if _, ok := c.Get("c"); ok {
		t.Fatal("c should have been evicted after b was refreshed")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b should have survived the eviction")
	}
	if _, ok := c.Get("d"); !ok {
		t.Fatal("d should be cached")
	}
}

func TestErase(t *testing.T) {
	c := mustNew(t, 2)
	c.Put("k", []byte("v"))

	c.Erase("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after Erase")
	}

	// Erasing an absent key is a no-op.
	c.Erase("missing")
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}

func TestClearResetsCounters(t *testing.T) {
	c := mustNew(t, 2)
	c.Put("k", []byte("v"))
	c.Get("k")
	c.Get("missing")

	if c.Hits() != 1 || c.Misses() != 2 {
		t.Fatalf("hits=%d misses=%d, want 1/2", c.Hits(), c.Misses())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len = %d after Clear, want 0", c.Len())
	}
	if c.Hits() != 0 || c.Misses() != 0 {
		t.Fatalf("hits=%d misses=%d after Clear, want 0/0", c.Hits(), c.Misses())
	}
}

func TestHitMissAccounting(t *testing.T) {
	c := mustNew(t, 4)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	for range 3 {
		c.Get("a")
	}
	for range 2 {
		c.Get("nope")
	}

	if c.Hits() != 3 {
		t.Fatalf("Hits = %d, want 3", c.Hits())
	}
	if c.Misses() != 2 {
		t.Fatalf("Misses = %d, want 2", c.Misses())
	}
}

func TestConcurrentAccess(t *testing.T) {
	const capacity = 32
	c := mustNew(t, capacity)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				key := fmt.Sprintf("k%d", (w*500+i)%64)
				c.Put(key, []byte{byte(i)})
				c.Get(key)
				if i%10 == 0 {
					c.Erase(key)
				}
			}
		}()
	}
	wg.Wait()

	if n := c.Len(); n > capacity {
		t.Fatalf("Len = %d exceeds capacity %d under concurrency", n, capacity)
	}
}
