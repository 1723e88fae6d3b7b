package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/services/ml"
	"RiskCast/internal/services/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleLoader_CachesUntilInvalidated(t *testing.T) {
	src := &bundleSource{bundle: fakeBundle(), version: "version_1"}
	m := newRecordingMetrics()
	l := NewBundleLoader(src, m, nil)
	ctx := context.Background()

	_, ok := l.Loaded()
	assert.False(t, ok)

	b1, v1, err := l.Get(ctx)
	require.NoError(t, err)
	b2, _, err := l.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, "version_1", v1)
	assert.Equal(t, int32(1), src.calls.Load())

	src.version = "version_2"
	v, err := l.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "version_2", v)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, []string{"version_1", "version_2"}, m.versions)

	current, ok := l.Loaded()
	assert.True(t, ok)
	assert.Equal(t, "version_2", current)
}

func TestBundleLoader_ConcurrentGet(t *testing.T) {
	l := NewBundleLoader(&bundleSource{bundle: fakeBundle(), version: "v"}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, v, err := l.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "v", v)
		}()
	}
	wg.Wait()
}

func TestBundleLoader_Errors(t *testing.T) {
	l := NewBundleLoader(&bundleSource{err: registry.ErrNoVersions}, nil, nil)
	_, _, err := l.Get(context.Background())
	assert.ErrorIs(t, err, models.ErrModelsNotLoaded)

	l = NewBundleLoader(&bundleSource{err: errors.New("disk gone")}, nil, nil)
	_, _, err = l.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)

	l = NewBundleLoader(&bundleSource{bundle: &ml.Bundle{Regressor: firstInputRegressor{}}, version: "v"}, nil, nil)
	_, _, err = l.Get(context.Background())
	assert.ErrorIs(t, err, models.ErrModelsNotLoaded)
	_, ok := l.Loaded()
	assert.False(t, ok)
}
