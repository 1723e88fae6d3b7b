package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"RiskCast/internal/domain/models"
	drepo "RiskCast/internal/domain/repository"
	"RiskCast/internal/services/ml"
	"RiskCast/internal/services/registry"
	applogger "RiskCast/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// BundleSource loads the newest persisted bundle.
type BundleSource interface {
	LoadLatest(ctx context.Context) (*ml.Bundle, string, error)
}

// BundleLoader caches the latest bundle in memory. Concurrent misses share one load.
type BundleLoader struct {
	src     BundleSource
	metrics drepo.Metrics
	l       *applogger.Logger

	mu      sync.RWMutex
	bundle  *ml.Bundle
	version string
	gen     uint64

	group singleflight.Group
}

type loadResult struct {
	bundle  *ml.Bundle
	version string
}

func NewBundleLoader(src BundleSource, metrics drepo.Metrics, l *applogger.Logger) *BundleLoader {
	if l == nil {
		l = applogger.Nop()
	}
	return &BundleLoader{src: src, metrics: metrics, l: l}
}

// Get returns the cached bundle, loading it on first use.
func (b *BundleLoader) Get(ctx context.Context) (*ml.Bundle, string, error) {
	b.mu.RLock()
	bundle, version, gen := b.bundle, b.version, b.gen
	b.mu.RUnlock()
	if bundle != nil {
		return bundle, version, nil
	}

	ch := b.group.DoChan(fmt.Sprintf("load-%d", gen), func() (interface{}, error) {
		return b.load(context.WithoutCancel(ctx), gen)
	})
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, "", res.Err
		}
		r := res.Val.(loadResult)
		return r.bundle, r.version, nil
	}
}

// Loaded reports the cached version without triggering a load.
func (b *BundleLoader) Loaded() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version, b.bundle != nil
}

// Invalidate drops the cached bundle. Loads started before the call never repopulate the cache.
func (b *BundleLoader) Invalidate() {
	b.mu.Lock()
	b.bundle, b.version = nil, ""
	b.gen++
	b.mu.Unlock()
}

// Reload invalidates and loads the latest bundle.
func (b *BundleLoader) Reload(ctx context.Context) (string, error) {
	b.Invalidate()
	_, version, err := b.Get(ctx)
	return version, err
}

func (b *BundleLoader) load(ctx context.Context, gen uint64) (loadResult, error) {
	bundle, version, err := b.src.LoadLatest(ctx)
	if err != nil {
		if errors.Is(err, registry.ErrNoVersions) {
			return loadResult{}, fmt.Errorf("%w: %v", models.ErrModelsNotLoaded, err)
		}
		return loadResult{}, fmt.Errorf("load bundle: %w", err)
	}
	if !bundle.Has(ml.RoleFeatures) {
		return loadResult{}, fmt.Errorf("%w: version %s has no feature list", models.ErrModelsNotLoaded, version)
	}

	b.mu.Lock()
	if b.gen == gen {
		b.bundle, b.version = bundle, version
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordModelVersion(version)
	}
	b.l.Info("model bundle loaded",
		applogger.String("version", version),
		applogger.Strings("roles", bundle.Present()))
	return loadResult{bundle: bundle, version: version}, nil
}
