package cache

import (
	"testing"
	"time"

	"paluwagan/internal/core"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func TestLRUCache_Expiry(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	c := NewLRUCache[core.HeadDashboard](4, 30*time.Second, clock)

	c.Set("head:u1", core.HeadDashboard{ActiveGroups: 2})
	if got, ok := c.Get("head:u1"); !ok || got.ActiveGroups != 2 {
		t.Fatalf("expected cached dashboard, got %v %v", got, ok)
	}

	clock.t = clock.t.Add(30 * time.Second)
	if _, ok := c.Get("head:u1"); ok {
		t.Error("entry should expire exactly at ttl")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be removed on read, size %d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Error("a should survive as most recently used")
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("overwrite should replace value, got %d", v)
	}
}

func TestLRUCache_PurgeAndDelete(t *testing.T) {
	c := NewLRUCache[string](8, time.Minute, nil)
	c.Set("x", "1")
	c.Set("y", "2")
	c.Delete("x")
	if c.Size() != 1 {
		t.Fatalf("expected 1 entry after delete, got %d", c.Size())
	}
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Size())
	}
	c.Set("z", "3")
	if _, ok := c.Get("z"); !ok {
		t.Error("cache should be usable after purge")
	}
}

func TestManager_CleanNow(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](8, time.Second, clock)
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register(c)

	if n := m.CleanNow(); n != 0 {
		t.Errorf("nothing should expire yet, removed %d", n)
	}
	clock.t = clock.t.Add(2 * time.Second)
	if n := m.CleanNow(); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
