package cache

import (
	"context"
	"time"
)

// LayeredCache reads through a small memory cache (L1) to a shared cache (L2).
// Writes go to L2 first; L1 entries live at most l1TTL so other writers become
// visible within that bound.
type LayeredCache struct {
	l1    *MemoryCache
	l2    Service
	l1TTL time.Duration
}

func NewLayeredCache(l2 Service, l1Size int, l1TTL time.Duration, opts ...MemoryOption) *LayeredCache {
	return &LayeredCache{
		l1:    NewMemoryCache(append([]MemoryOption{WithMemoryMaxSize(l1Size)}, opts...)...),
		l2:    l2,
		l1TTL: l1TTL,
	}
}

func (c *LayeredCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	if err := c.l2.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, data, c.localTTL(ttl))
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest any) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	var data []byte
	if err := c.l2.Get(ctx, key, &data); err != nil {
		return err
	}
	_ = c.l1.Set(ctx, key, data, c.l1TTL)
	return unmarshal(data, dest)
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	return c.l2.Delete(ctx, keys...)
}

// Ping forwards to L2 when it can be probed.
func (c *LayeredCache) Ping(ctx context.Context) error {
	if p, ok := c.l2.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *LayeredCache) Close() error {
	_ = c.l1.Close()
	return c.l2.Close()
}

func (c *LayeredCache) localTTL(ttl time.Duration) time.Duration {
	if c.l1TTL > 0 && (ttl <= 0 || c.l1TTL < ttl) {
		return c.l1TTL
	}
	return ttl
}
