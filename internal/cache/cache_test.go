package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New[string, int](10, time.Minute)
	c.Set("a", 1)

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should return false")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[string, int](10, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("a", 1)

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, ok := c.Get("a"); !ok {
		t.Error("entry should still be live before TTL")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expiry reap, want 0", c.Len())
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New[string, int](3, time.Minute)
	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	if _, ok := c.Get("k0"); ok {
		t.Error("oldest entry k0 should have been evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("k%d should still be present", i)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestSetRefreshesInsertionOrder(t *testing.T) {
	c := New[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3) // re-insert: "b" is now oldest
	c.Set("c", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as the oldest insertion")
	}
	if v, ok := c.Get("a"); !ok || v != 3 {
		t.Errorf("Get(a) = %d, %v; want 3, true", v, ok)
	}
}

func TestClear(t *testing.T) {
	c := New[string, int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
}

func TestStats(t *testing.T) {
	c := New[string, int](5, time.Minute)
	c.Set("a", 1)
	s := c.Stats()
	if s.Entries != 1 || s.Capacity != 5 || s.TTL != time.Minute {
		t.Errorf("Stats() = %+v", s)
	}
}
