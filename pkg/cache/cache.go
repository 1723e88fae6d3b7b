// Package cache holds the prediction cache and the cross-process training lock.
// Values are JSON-encoded so every backend decodes into the same typed dest.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrNotLockOwner is returned by Unlock when the lock expired or was taken
	// over by another holder.
	ErrNotLockOwner = errors.New("cache: lock not held")
)

// Service is the cache surface used by the prediction and training paths.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get decodes the stored value into dest or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes keys matching a glob such as "pred:*".
	DeleteByPattern(ctx context.Context, pattern string) error
	// TryLock acquires key for ttl without blocking.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock releases a lock acquired by this Service instance.
	Unlock(ctx context.Context, key string) error
}

// encodeValue stores strings raw and everything else as JSON.
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func decodeValue(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}
