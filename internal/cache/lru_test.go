package cache

import "testing"

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a", the least recently used

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b=2 to survive, got %d, %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("expected c=3 to survive, got %d, %v", v, ok)
	}
}

func TestLRUGetPromotesToMostRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touch a, making b the least recently used
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted after a was touched")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to survive after being touched")
	}
}

func TestLRUUnboundedWhenCapacityIsZero(t *testing.T) {
	c := NewLRU[int, int](0)
	for i := 0; i < 100; i++ {
		c.Put(i, i*i)
	}
	if got := c.Len(); got != 100 {
		t.Fatalf("expected 100 entries in an unbounded cache, got %d", got)
	}
}

func TestLRUEvictRemovesEntry(t *testing.T) {
	c := NewLRU[string, int](4)
	c.Put("a", 1)
	c.Evict("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected explicit Evict to remove the entry")
	}
	if got := c.Len(); got != 0 {
		t.Fatalf("expected empty cache after evicting the only entry, got len %d", got)
	}
}

func TestLRUPutUpdatesExistingKeyWithoutGrowing(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("a", 2)
	if got := c.Len(); got != 1 {
		t.Fatalf("expected updating an existing key not to grow the cache, got len %d", got)
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("expected updated value 2, got %d", v)
	}
}
