package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"RiskCast/internal/domain/models"
	"RiskCast/pkg/cache"
	"RiskCast/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainJob_RespectsLock(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	src := &barSource{bars: map[string][]models.Bar{}}
	cfg := testTrainingConfig()
	cfg.Retries = 1
	svc := NewTrainingService(src, nil, nil, &recordingPublisher{}, newRecordingMetrics(), cfg, nil)
	job := NewTrainJob(svc, mc, time.Minute, nil)
	assert.Equal(t, models.JobTrainModels, job.Type())

	ctx := context.Background()
	ok, err := mc.TryLock(ctx, trainLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = job.Handle(ctx, json.RawMessage(`{"tickers":["AAPL"],"use_cache":true}`))
	assert.ErrorIs(t, err, ErrTrainingInProgress)
	assert.Equal(t, int32(0), src.calls.Load())

	require.NoError(t, mc.Unlock(ctx, trainLockKey))
	err = job.Handle(ctx, json.RawMessage(`{"tickers":["AAPL"]}`))
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, int32(1), src.calls.Load())

	// The lock is released after the run.
	ok, err = mc.TryLock(ctx, trainLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrainJob_BadPayload(t *testing.T) {
	job := NewTrainJob(nil, nil, time.Minute, nil)
	assert.ErrorIs(t, job.Handle(context.Background(), json.RawMessage(`{"tickers":`)), queue.ErrPermanent)
}

func TestModelEventsHandler(t *testing.T) {
	src := &bundleSource{bundle: fakeBundle(), version: "version_1"}
	loader := NewBundleLoader(src, nil, nil)
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	h := NewModelEventsHandler("riskcast.model.events", loader, mc, nil)
	ctx := context.Background()
	assert.Equal(t, "riskcast.model.events", h.Topic())

	_, _, err := loader.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, mc.Set(ctx, "pred:risk:version_1:AAPL", "x", time.Minute))

	// Stale and malformed events are ignored.
	require.NoError(t, h.Handle(ctx, []byte(`{"type":"model.trained","version":"version_0"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`not json`)))
	assert.Equal(t, int32(1), src.calls.Load())

	src.version = "version_2"
	require.NoError(t, h.Handle(ctx, []byte(`{"type":"model.trained","version":"version_2"}`)))
	assert.Equal(t, int32(2), src.calls.Load())
	current, _ := loader.Loaded()
	assert.Equal(t, "version_2", current)

	var stale string
	assert.ErrorIs(t, mc.Get(ctx, "pred:risk:version_1:AAPL", &stale), cache.ErrCacheMiss)
}
