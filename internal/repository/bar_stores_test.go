package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"RiskCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	bars  map[string][]models.Bar
	err   map[string]error
}

func (f *fakeFetcher) FetchDaily(_ context.Context, ticker string) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[ticker]++
	if err := f.err[ticker]; err != nil {
		return nil, err
	}
	return f.bars[ticker], nil
}

type fakeArchive struct{ saved []models.Bar }

func (a *fakeArchive) SaveBars(_ context.Context, bars []models.Bar) error {
	a.saved = append(a.saved, bars...)
	return nil
}

func dailyBars(ticker string, n int, start float64) []models.Bar {
	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		c := start + float64(i)*0.5
		out[i] = models.Bar{Ticker: ticker, Date: day0.AddDate(0, 0, i), Open: c - 0.25, High: c + 1, Low: c - 1, Close: c, Volume: 1000 + float64(i)}
	}
	return out
}

func TestCachedBarSource_CachesAndSkipsFailures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := &fakeFetcher{
		bars: map[string][]models.Bar{"AAPL": dailyBars("AAPL", 5, 100), "MSFT": dailyBars("MSFT", 3, 300)},
		err:  map[string]error{"BAD": errors.New("rate limited")},
	}
	arch := &fakeArchive{}
	src := NewCachedBarSource(dir, 24*time.Hour, f, WithArchive(arch))

	bars, err := src.Fetch(ctx, []string{"msft", "BAD", "AAPL"}, true)
	require.NoError(t, err)
	require.Len(t, bars, 8)
	assert.Equal(t, "AAPL", bars[0].Ticker, "sorted by ticker")
	assert.Equal(t, "MSFT", bars[7].Ticker)
	assert.Len(t, arch.saved, 8)
	assert.FileExists(t, filepath.Join(dir, "AAPL.csv"))

	again, err := src.Fetch(ctx, []string{"AAPL", "MSFT"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls["AAPL"], "second read served from cache")
	require.Len(t, again, 8)
	for i := range bars {
		assert.Equal(t, bars[i].Ticker, again[i].Ticker)
		assert.True(t, bars[i].Date.Equal(again[i].Date))
		assert.InDelta(t, bars[i].Close, again[i].Close, 1e-6)
		assert.InDelta(t, bars[i].Volume, again[i].Volume, 1e-6)
	}

	_, err = src.Fetch(ctx, []string{"AAPL"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["AAPL"], "cache bypassed")
}

func TestCachedBarSource_TTL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := &fakeFetcher{bars: map[string][]models.Bar{"TSLA": dailyBars("TSLA", 2, 200)}}
	now := time.Now()
	src := NewCachedBarSource(dir, time.Hour, f, WithCacheClock(func() time.Time { return now }))

	_, err := src.Fetch(ctx, []string{"TSLA"}, true)
	require.NoError(t, err)
	stale := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "TSLA.csv"), stale, stale))

	_, err = src.Fetch(ctx, []string{"TSLA"}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["TSLA"])
}

func TestCachedBarSource_AllFailIsEmpty(t *testing.T) {
	src := NewCachedBarSource(t.TempDir(), time.Hour, &fakeFetcher{err: map[string]error{"X": errors.New("boom")}})
	bars, err := src.Fetch(context.Background(), []string{"X"}, true)
	require.NoError(t, err)
	assert.Empty(t, bars)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, []string{"X"}, true)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingDB struct {
	queries []string
	args    [][]any
	err     error
}

func (d *recordingDB) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	d.queries = append(d.queries, q)
	d.args = append(d.args, args)
	return nil, d.err
}

func (d *recordingDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func TestCHBarStore_SaveBarsChunks(t *testing.T) {
	db := &recordingDB{}
	s := NewCHBarStore(db, "")
	s.chunkSize = 2

	bars := dailyBars("AAPL", 5, 10)
	bars = append(bars, models.Bar{Ticker: ""})
	require.NoError(t, s.SaveBars(context.Background(), bars))
	require.Len(t, db.queries, 3)
	assert.True(t, strings.HasPrefix(db.queries[0], "INSERT INTO riskcast.daily_bars (date, ticker"))
	assert.Len(t, db.args[0], 14)
	assert.Len(t, db.args[2], 7, "invalid row skipped")

	db.err = errors.New("down")
	assert.ErrorContains(t, s.SaveBars(context.Background(), bars[:1]), "insert bars")

	_, err := s.Fetch(context.Background(), []string{"AAPL"}, true)
	assert.ErrorContains(t, err, "fetch bars")
}

func TestBuildBarSelect(t *testing.T) {
	q, args := buildBarSelect("db.bars", []string{"AAPL", "MSFT"})
	assert.Contains(t, q, "FROM db.bars FINAL")
	assert.Contains(t, q, "IN (?,?)")
	assert.Equal(t, []any{"AAPL", "MSFT"}, args)

	assert.Len(t, BarSchema("db.bars"), 2)
	assert.Len(t, BarSchema("bars"), 1)
}

type fakeProducer struct {
	topic string
	key   []byte
	value interface{}
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}
func (p *fakeProducer) Close() error { return nil }

func TestKafkaEventPublisher(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaEventPublisher(fp, "riskcast.model.events")

	ev := &models.ModelEvent{Version: "version_20240101_000000", TrainRows: 10}
	require.NoError(t, pub.PublishModelEvent(context.Background(), ev))
	assert.Equal(t, "riskcast.model.events", fp.topic)
	assert.Equal(t, []byte("version_20240101_000000"), fp.key)
	assert.Equal(t, models.EventModelTrained, fp.value.(*models.ModelEvent).Type)

	assert.ErrorIs(t, pub.PublishModelEvent(context.Background(), &models.ModelEvent{}), models.ErrInvalidInput)
	require.NoError(t, pub.Close())
}
