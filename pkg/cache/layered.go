package cache

import (
	"context"
	"errors"
	"time"
)

var _ Service = (*LayeredCache)(nil)

// LayeredCache puts a short-lived in-process LRU in front of Redis. Locks and
// pattern deletes always go to Redis so every replica sees them.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache
	l1TTL  time.Duration
}

func NewLayeredCache(remote *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, LocalTTL: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: remote,
		l1TTL:  cfg.LocalTTL,
	}
}

// Set writes through to Redis first, then to the local layer.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, value, lc.localTTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	var raw []byte
	if err := lc.remote.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, raw, lc.l1TTL)
	return decodeValue(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.Join(
		lc.local.DeleteByPattern(ctx, pattern),
		lc.remote.DeleteByPattern(ctx, pattern),
	)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.remote.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}

func (lc *LayeredCache) localTTL(remote time.Duration) time.Duration {
	if remote > 0 && remote < lc.l1TTL {
		return remote
	}
	return lc.l1TTL
}
