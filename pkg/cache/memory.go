package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Service = (*MemoryCache)(nil)

const defaultMemoryTTL = 24 * time.Hour

// MemoryCache is a size-bounded in-process TTL cache. When full it first drops
// expired entries, then the entry closest to expiry. Locks live in a separate
// table so eviction never drops a held lock.
type MemoryCache struct {
	mu      sync.Mutex // serializes the size check with the insert
	items   *gocache.Cache
	locks   *gocache.Cache
	maxSize int
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{
		items:   gocache.New(defaultMemoryTTL, cfg.CleanupInterval),
		locks:   gocache.New(gocache.NoExpiration, cfg.CleanupInterval),
		maxSize: cfg.MaxSize,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, exists := mc.items.Get(key); !exists {
		mc.makeRoom()
	}
	mc.items.Set(key, data, expiration)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := mc.items.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	return decodeValue(v.([]byte), dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.items.Delete(key)
	}
	return nil
}

// DeleteByPattern removes keys matching a path.Match glob.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("match pattern: %w", err)
	}
	for key := range mc.items.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			mc.items.Delete(key)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := mc.locks.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	if _, held := mc.locks.Get(key); !held {
		return ErrNotLockOwner
	}
	mc.locks.Delete(key)
	return nil
}

// Len reports the number of cached entries, expired ones not yet swept included.
func (mc *MemoryCache) Len() int {
	return mc.items.ItemCount()
}

// Close empties the cache. The janitor goroutine stops once the cache is collected.
func (mc *MemoryCache) Close() error {
	mc.items.Flush()
	mc.locks.Flush()
	return nil
}

func (mc *MemoryCache) makeRoom() {
	if mc.maxSize <= 0 || mc.items.ItemCount() < mc.maxSize {
		return
	}
	mc.items.DeleteExpired()
	for mc.items.ItemCount() >= mc.maxSize {
		var victim string
		soonest := int64(-1)
		for k, it := range mc.items.Items() {
			if soonest < 0 || it.Expiration < soonest {
				victim, soonest = k, it.Expiration
			}
		}
		if victim == "" {
			return
		}
		mc.items.Delete(victim)
	}
}
