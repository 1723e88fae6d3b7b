package registry

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"RiskCast/internal/domain/models"
	domrepo "RiskCast/internal/domain/repository"
	"RiskCast/internal/repository"
	"RiskCast/internal/services/features"
	"RiskCast/internal/services/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func trainedBundle(t *testing.T) *ml.Bundle {
	t.Helper()
	var bars []models.Bar
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for k, ticker := range []string{"AAPL", "MSFT", "TSLA"} {
		r := rand.New(rand.NewSource(int64(k)))
		c := 50.0
		for i := 0; i < 120; i++ {
			c *= 1 + r.NormFloat64()*0.01*float64(k+1)
			bars = append(bars, models.Bar{Ticker: ticker, Date: start.AddDate(0, 0, i), Close: c})
		}
	}
	train, _, err := features.Split(features.GenerateFeatures(bars), features.Fraction(0.2))
	require.NoError(t, err)
	b, err := ml.Train(train, ml.DefaultTrainConfig())
	require.NoError(t, err)
	return b
}

func newRegistry(t *testing.T, now time.Time) (*Registry, string) {
	dir := filepath.Join(t.TempDir(), "models")
	return New(repository.NewFileArtifactStore(dir), WithClock(fixedClock(now))), dir
}

func TestRegistry_LoadLatestEmpty(t *testing.T) {
	r, dir := newRegistry(t, time.Now())
	_, _, err := r.LoadLatest(context.Background())
	assert.ErrorIs(t, err, ErrNoVersions)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scratch"), 0o755))
	_, _, err = r.LoadLatest(context.Background())
	assert.ErrorIs(t, err, ErrNoVersions, "non-version directories are ignored")
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r, dir := newRegistry(t, now)
	b := trainedBundle(t)

	v, err := r.Save(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "version_20240506_070809", v)
	for _, role := range ml.Roles {
		assert.FileExists(t, filepath.Join(dir, v, role+".json"))
	}

	loaded, latest, err := r.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, v, latest)
	assert.Equal(t, ml.Roles, loaded.Present())
	assert.Equal(t, b.Thresholds, loaded.Thresholds)
	assert.Equal(t, b.Features, loaded.Features)
}

func TestRegistry_SameSecondCollision(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	b := &ml.Bundle{Features: []string{features.ColReturnLag1}}

	v1, err := r.Save(ctx, b)
	require.NoError(t, err)
	v2, err := r.Save(ctx, b)
	require.NoError(t, err)
	v3, err := r.Save(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, "version_20240506_070809", v1)
	assert.Equal(t, "version_20240506_070809_01", v2)
	assert.Equal(t, "version_20240506_070809_02", v3)

	versions, err := r.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{v1, v2, v3}, versions)

	_, latest, err := r.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, v3, latest)
}

func TestRegistry_LatestIsLexicographicMax(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "models")
	store := repository.NewFileArtifactStore(dir)
	b := &ml.Bundle{Features: []string{features.ColReturnLag1}}

	for _, ts := range []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	} {
		_, err := New(store, WithClock(fixedClock(ts))).Save(ctx, b)
		require.NoError(t, err)
	}
	_, latest, err := New(store).LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "version_20250101_000000", latest)
}

func TestRegistry_PartialAndCorruptBundles(t *testing.T) {
	ctx := context.Background()
	r, dir := newRegistry(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC))
	full := trainedBundle(t)

	partial := &ml.Bundle{Classifier: full.Classifier, Features: full.Features}
	v, err := r.Save(ctx, partial)
	require.NoError(t, err)

	loaded, _, err := r.LoadLatest(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Has(ml.RoleClassifier))
	assert.False(t, loaded.Has(ml.RoleRegressor))
	assert.ErrorIs(t, loaded.Require(ml.RoleRegressor), models.ErrModelsNotLoaded)

	require.NoError(t, os.WriteFile(filepath.Join(dir, v, ml.RoleClassifier+".json"), []byte("{garbage"), 0o644))
	_, _, err = r.LoadLatest(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestRegistry_RejectsEmptyBundle(t *testing.T) {
	r, _ := newRegistry(t, time.Now())
	_, err := r.Save(context.Background(), &ml.Bundle{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

var errDiskFull = errors.New("disk full")

// failingStore fails Put for one artifact name.
type failingStore struct {
	domrepo.ArtifactStore
	failOn string
}

func (s *failingStore) Put(ctx context.Context, namespace, name string, data []byte) error {
	if name == s.failOn {
		return errDiskFull
	}
	return s.ArtifactStore.Put(ctx, namespace, name, data)
}

func TestRegistry_FailedSaveDoesNotShadowGoodVersion(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "models")
	store := repository.NewFileArtifactStore(dir)
	b := trainedBundle(t)

	good, err := New(store, WithClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))).Save(ctx, b)
	require.NoError(t, err)

	broken := New(&failingStore{ArtifactStore: store, failOn: ml.RoleRegressor},
		WithClock(fixedClock(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))))
	_, err = broken.Save(ctx, b)
	require.ErrorIs(t, err, errDiskFull)
	assert.NoDirExists(t, filepath.Join(dir, "version_20240102_000000"))

	loaded, latest, err := New(store).LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, latest)
	assert.Equal(t, ml.Roles, loaded.Present())
}

func TestRegistry_LoadLatestSkipsIncompleteVersions(t *testing.T) {
	ctx := context.Background()
	r, dir := newRegistry(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	good, err := r.Save(ctx, &ml.Bundle{Features: []string{features.ColReturnLag1}})
	require.NoError(t, err)

	// A crash between claim and the feature list leaves a newer version without it.
	crashed := filepath.Join(dir, "version_20240102_000000")
	require.NoError(t, os.MkdirAll(crashed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(crashed, ml.RoleRegressor+".json"), []byte("{}"), 0o644))

	_, latest, err := r.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, latest)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, good)))
	_, _, err = r.LoadLatest(ctx)
	assert.ErrorIs(t, err, ErrNoVersions)
}

func TestRegistry_RejectsBundleWithoutFeatures(t *testing.T) {
	r, dir := newRegistry(t, time.Now())
	_, err := r.Save(context.Background(), &ml.Bundle{Thresholds: &features.RiskThresholds{Low: 0.01, High: 0.02}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.NoDirExists(t, dir)
}
