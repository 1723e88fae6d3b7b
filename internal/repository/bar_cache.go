package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"RiskCast/internal/domain/models"
	domrepo "RiskCast/internal/domain/repository"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/util"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var _ domrepo.BarSource = (*CachedBarSource)(nil)

var barColumnTypes = map[string]series.Type{
	"date":   series.String,
	"open":   series.Float,
	"high":   series.Float,
	"low":    series.Float,
	"close":  series.Float,
	"volume": series.Float,
}

// CachedBarSource serves bars from per-ticker CSV files under dir and refreshes
// them from a provider once they are older than ttl.
type CachedBarSource struct {
	dir     string
	ttl     time.Duration
	fetcher domrepo.BarFetcher
	archive domrepo.BarArchive
	l       *applogger.Logger
	now     func() time.Time
}

// CachedBarSourceOption configures CachedBarSource.
type CachedBarSourceOption func(*CachedBarSource)

// WithArchive mirrors freshly fetched bars into a, for example ClickHouse.
func WithArchive(a domrepo.BarArchive) CachedBarSourceOption {
	return func(s *CachedBarSource) { s.archive = a }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *applogger.Logger) CachedBarSourceOption {
	return func(s *CachedBarSource) { s.l = l }
}

// WithCacheClock overrides time.Now for TTL checks.
func WithCacheClock(now func() time.Time) CachedBarSourceOption {
	return func(s *CachedBarSource) { s.now = now }
}

func NewCachedBarSource(dir string, ttl time.Duration, fetcher domrepo.BarFetcher, opts ...CachedBarSourceOption) *CachedBarSource {
	s := &CachedBarSource{
		dir:     dir,
		ttl:     ttl,
		fetcher: fetcher,
		l:       applogger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns bars for tickers. Tickers that fail are logged and skipped,
// so the result may be empty.
func (s *CachedBarSource) Fetch(ctx context.Context, tickers []string, useCache bool) ([]models.Bar, error) {
	out := make([]models.Bar, 0, len(tickers)*100)
	for _, raw := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ticker := util.NormalizeTicker(raw)
		bars, err := s.fetchOne(ctx, ticker, useCache)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.l.Warn("bar fetch failed, skipping ticker",
				applogger.String("ticker", ticker),
				applogger.Error(err))
			continue
		}
		out = append(out, bars...)
	}
	models.SortBars(out)
	return models.DedupeBars(out), nil
}

func (s *CachedBarSource) fetchOne(ctx context.Context, ticker string, useCache bool) ([]models.Bar, error) {
	path := s.path(ticker)
	if useCache && s.fresh(path) {
		bars, err := readBarsCSV(path, ticker)
		if err == nil {
			s.l.Debug("bar cache hit", applogger.String("ticker", ticker), applogger.Int("rows", len(bars)))
			return bars, nil
		}
		s.l.Warn("bar cache unreadable, refetching", applogger.String("ticker", ticker), applogger.Error(err))
	}

	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no cached bars for %s", models.ErrNotFound, ticker)
	}
	bars, err := s.fetcher.FetchDaily(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	if err := writeBarsCSV(path, bars); err != nil {
		s.l.Warn("bar cache write failed", applogger.String("ticker", ticker), applogger.Error(err))
	}
	if s.archive != nil && len(bars) > 0 {
		if err := s.archive.SaveBars(ctx, bars); err != nil {
			s.l.Warn("bar archive failed", applogger.String("ticker", ticker), applogger.Error(err))
		}
	}
	return bars, nil
}

func (s *CachedBarSource) path(ticker string) string {
	return filepath.Join(s.dir, ticker+".csv")
}

func (s *CachedBarSource) fresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return s.now().Sub(info.ModTime()) < s.ttl
}

func writeBarsCSV(path string, bars []models.Bar) error {
	n := len(bars)
	dates := make([]string, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	for i, b := range bars {
		dates[i] = util.FormatDate(b.Date)
		open[i], high[i], low[i], cls[i], vol[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}
	df := dataframe.New(
		series.New(dates, series.String, "date"),
		series.New(open, series.Float, "open"),
		series.New(high, series.Float, "high"),
		series.New(low, series.Float, "low"),
		series.New(cls, series.Float, "close"),
		series.New(vol, series.Float, "volume"),
	)
	if df.Err != nil {
		return fmt.Errorf("build frame: %w", df.Err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bars-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := df.WriteCSV(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func readBarsCSV(path, ticker string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.WithTypes(barColumnTypes))
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return []models.Bar{}, nil
	}
	for name := range barColumnTypes {
		if df.Col(name).Err != nil {
			return nil, fmt.Errorf("read csv: missing column %s", name)
		}
	}

	dates := df.Col("date").Records()
	open := df.Col("open").Float()
	high := df.Col("high").Float()
	low := df.Col("low").Float()
	cls := df.Col("close").Float()
	vol := df.Col("volume").Float()

	bars := make([]models.Bar, 0, len(dates))
	for i, d := range dates {
		date, err := util.ParseDate(d)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		bars = append(bars, models.Bar{
			Ticker: ticker,
			Date:   date,
			Open:   open[i],
			High:   high[i],
			Low:    low[i],
			Close:  cls[i],
			Volume: vol[i],
		})
	}
	return bars, nil
}
