package repository

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"RiskCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileArtifactStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileArtifactStore(filepath.Join(t.TempDir(), "models"))

	_, err := s.Namespaces(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound, "root absent")

	require.NoError(t, s.Create(ctx, "version_20240101_000000"))
	err = s.Create(ctx, "version_20240101_000000")
	assert.ErrorIs(t, err, fs.ErrExist)

	require.NoError(t, s.Put(ctx, "version_20240101_000000", "features", []byte(`["a"]`)))
	got, err := s.Get(ctx, "version_20240101_000000", "features")
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(got))

	_, err = s.Get(ctx, "version_20240101_000000", "pca")
	assert.ErrorIs(t, err, models.ErrNotFound)

	names, err := s.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"version_20240101_000000"}, names)

	entries, err := os.ReadDir(filepath.Join(s.Root(), "version_20240101_000000"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	assert.ErrorIs(t, s.Put(ctx, "../x", "a", nil), models.ErrInvalidInput)

	require.NoError(t, s.Delete(ctx, "version_20240101_000000"))
	assert.NoDirExists(t, filepath.Join(s.Root(), "version_20240101_000000"))
	require.NoError(t, s.Delete(ctx, "version_20240101_000000"), "missing namespace")
	assert.ErrorIs(t, s.Delete(ctx, ".."), models.ErrInvalidInput)
}

func TestFileMetricsStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileMetricsStore(filepath.Join(t.TempDir(), "experiments"))

	_, err := s.Latest(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound)

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })
	path, err := s.Save(ctx, &models.MetricsReport{Regression: models.RegressionMetrics{RMSE: 1}})
	require.NoError(t, err)
	assert.Equal(t, "metrics_20240301_090000.json", filepath.Base(path))

	clock = clock.Add(time.Hour)
	_, err = s.Save(ctx, &models.MetricsReport{Regression: models.RegressionMetrics{RMSE: 2}})
	require.NoError(t, err)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, latest.Regression.RMSE)
	assert.Equal(t, "20240301_100000", latest.Timestamp)

	// Same-second runs keep both reports and the later one is latest.
	first, err := s.Save(ctx, &models.MetricsReport{Regression: models.RegressionMetrics{RMSE: 3}})
	require.NoError(t, err)
	second, err := s.Save(ctx, &models.MetricsReport{Regression: models.RegressionMetrics{RMSE: 4}})
	require.NoError(t, err)
	assert.Equal(t, "metrics_20240301_100000_01.json", filepath.Base(first))
	assert.Equal(t, "metrics_20240301_100000_02.json", filepath.Base(second))
	assert.FileExists(t, filepath.Join(filepath.Dir(first), "metrics_20240301_100000.json"))

	latest, err = s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4.0, latest.Regression.RMSE)
}
