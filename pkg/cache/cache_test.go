package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prediction struct {
	Ticker string             `json:"ticker"`
	Probs  map[string]float64 `json:"probs"`
}

func newTestCache(opts ...MemoryOption) *MemoryCache {
	return NewMemoryCache(append([]MemoryOption{WithMemoryCleanup(0)}, opts...)...)
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := newTestCache()
	defer mc.Close()

	in := prediction{Ticker: "AAPL", Probs: map[string]float64{"Low": 0.7, "High": 0.3}}
	require.NoError(t, mc.Set(ctx, "pred:v1:AAPL", in, time.Minute))

	var out prediction
	require.NoError(t, mc.Get(ctx, "pred:v1:AAPL", &out))
	assert.Equal(t, in, out)

	var s string
	require.NoError(t, mc.Set(ctx, "plain", "hello", 0))
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "hello", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := newTestCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", 1, 30*time.Millisecond))
	var v int
	require.NoError(t, mc.Get(ctx, "k", &v))
	assert.Equal(t, 1, v)

	time.Sleep(60 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := newTestCache()
	defer mc.Close()

	for _, k := range []string{"pred:risk:v1:AAPL", "pred:return:v1:MSFT", "other"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("pred:")))

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "pred:risk:v1:AAPL", &s), ErrCacheMiss)
	assert.ErrorIs(t, mc.Get(ctx, "pred:return:v1:MSFT", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "other", &s))

	assert.Error(t, mc.DeleteByPattern(ctx, "pred:["))
}

func TestMemoryCache_Lock(t *testing.T) {
	ctx := context.Background()
	mc := newTestCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:train", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = mc.TryLock(ctx, "lock:train", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "lock:train"))

	// An expired lock no longer belongs to its first holder and can be taken again.
	ok, err = mc.TryLock(ctx, "lock:train", 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(60 * time.Millisecond)
	assert.ErrorIs(t, mc.Unlock(ctx, "lock:train"), ErrNotLockOwner)
	ok, err = mc.TryLock(ctx, "lock:train", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_LocksSurviveEviction(t *testing.T) {
	ctx := context.Background()
	mc := newTestCache(WithMemoryMaxSize(1))
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:train", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))

	ok, err = mc.TryLock(ctx, "lock:train", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsSoonestExpiring(t *testing.T) {
	ctx := context.Background()
	mc := newTestCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	require.NoError(t, mc.Set(ctx, "a", "1b", time.Hour)) // overwrite needs no room
	require.NoError(t, mc.Set(ctx, "c", "3", time.Hour))

	var s string
	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &s))
	assert.Equal(t, "1b", s)
	require.NoError(t, mc.Get(ctx, "c", &s))
	assert.Equal(t, "3", s)
}

func TestMemoryCache_DropsExpiredBeforeLiveEntries(t *testing.T) {
	ctx := context.Background()
	mc := newTestCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "stale", "1", 10*time.Millisecond))
	require.NoError(t, mc.Set(ctx, "live", "2", time.Minute))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, mc.Set(ctx, "new", "3", time.Hour))

	var s string
	require.NoError(t, mc.Get(ctx, "live", &s))
	require.NoError(t, mc.Get(ctx, "new", &s))
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "pred:risk:version_1:AAPL", GenerateKeyWithParams("pred", "risk", "version_1", "AAPL"))
	assert.Equal(t, "pred:AAPL", GenerateKey("pred", "AAPL"))
	assert.Equal(t, "pred:*", BuildPattern("pred:"))
}
