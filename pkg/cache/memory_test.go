package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *manualClock {
	return &manualClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	ctx := context.Background()

	if err := mc.Set(ctx, "k", payload{Name: "a", Value: 1.5}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetTyped[payload](ctx, mc, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "a" || got.Value != 1.5 {
		t.Fatalf("unexpected value %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	clk := newClock()
	mc := NewMemoryCache(WithMemoryCleanup(0), WithMemoryClock(clk.now))
	ctx := context.Background()

	var s string
	if err := mc.Get(ctx, "missing", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	_ = mc.Set(ctx, "short", "v", time.Second)
	clk.add(999 * time.Millisecond)
	if err := mc.Get(ctx, "short", &s); err != nil || s != "v" {
		t.Fatalf("before expiry: %q %v", s, err)
	}
	clk.add(time.Millisecond)
	if err := mc.Get(ctx, "short", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}
	if mc.Len() != 0 {
		t.Fatalf("expired entry kept: len %d", mc.Len())
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", 0)
	_ = mc.Set(ctx, "b", "2", 0)
	var s string
	_ = mc.Get(ctx, "a", &s) // a is now more recent than b
	_ = mc.Set(ctx, "c", "3", 0)

	if err := mc.Get(ctx, "b", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b to be evicted, got %v", err)
	}
	for _, k := range []string{"a", "c"} {
		if err := mc.Get(ctx, k, &s); err != nil {
			t.Fatalf("expected %s to remain: %v", k, err)
		}
	}
	if mc.Len() != 2 {
		t.Fatalf("len = %d", mc.Len())
	}
}

func TestMemoryCacheOverwriteKeepsSize(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", 0)
	_ = mc.Set(ctx, "b", "2", 0)
	_ = mc.Set(ctx, "a", "3", 0)

	var s string
	if err := mc.Get(ctx, "b", &s); err != nil {
		t.Fatalf("overwrite must not evict: %v", err)
	}
	if err := mc.Get(ctx, "a", &s); err != nil || s != "3" {
		t.Fatalf("a = %q, %v", s, err)
	}
}

func TestLayeredCacheReadsThroughAndBoundsStaleness(t *testing.T) {
	clk := newClock()
	l2 := NewMemoryCache(WithMemoryCleanup(0), WithMemoryClock(clk.now))
	lc := NewLayeredCache(l2, 10, 10*time.Second, WithMemoryCleanup(0), WithMemoryClock(clk.now))
	ctx := context.Background()

	if err := lc.Set(ctx, "k", payload{Name: "v1"}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	// another writer updates L2 directly
	_ = l2.Set(ctx, "k", payload{Name: "v2"}, 0)
	got, err := GetTyped[payload](ctx, lc, "k")
	if err != nil || got.Name != "v1" {
		t.Fatalf("L1 hit = %+v, %v", got, err)
	}

	clk.add(10 * time.Second)
	got, err = GetTyped[payload](ctx, lc, "k")
	if err != nil || got.Name != "v2" {
		t.Fatalf("after l1 ttl = %+v, %v", got, err)
	}

	if err := lc.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetTyped[payload](ctx, lc, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("forecast", int64(1), 2); got != "forecast:1:2" {
		t.Fatalf("unexpected key %s", got)
	}
}
