package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"RiskCast/internal/domain/models"
	domrepo "RiskCast/internal/domain/repository"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/util"
)

var (
	_ domrepo.BarSource  = (*CHBarStore)(nil)
	_ domrepo.BarArchive = (*CHBarStore)(nil)
)

const defaultBarTable = "riskcast.daily_bars"

// BarSchema returns the idempotent DDL for the bar table.
func BarSchema(table string) []string {
	db := strings.SplitN(table, ".", 2)[0]
	stmts := make([]string, 0, 2)
	if db != table {
		stmts = append(stmts, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db))
	}
	return append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    date   Date,
    ticker LowCardinality(String),
    open   Float64,
    high   Float64,
    low    Float64,
    close  Float64,
    volume Float64,
    ingested_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (ticker, date)`, table))
}

type sqlDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CHBarStore stores and serves daily bars in ClickHouse. ReplacingMergeTree keeps
// the newest row per (ticker, date), and reads use FINAL.
type CHBarStore struct {
	db        sqlDB
	table     string
	chunkSize int
	l         *applogger.Logger
}

func NewCHBarStore(db sqlDB, table string) *CHBarStore {
	if table == "" {
		table = defaultBarTable
	}
	return &CHBarStore{db: db, table: table, chunkSize: 2000, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

// Fetch reads all stored bars for tickers. useCache is ignored; ClickHouse is the store of record.
func (s *CHBarStore) Fetch(ctx context.Context, tickers []string, _ bool) ([]models.Bar, error) {
	tickers = util.NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return []models.Bar{}, nil
	}
	start := time.Now()
	q, args := buildBarSelect(s.table, tickers)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse fetch_bars query error",
			applogger.String("table", s.table),
			applogger.Strings("tickers", tickers),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 256*len(tickers))
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Ticker, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = models.NormalizeDate(b.Date)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Info("clickhouse fetch_bars ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// SaveBars batch-inserts bars with multi-row VALUES, chunked to bound statement size.
func (s *CHBarStore) SaveBars(ctx context.Context, bars []models.Bar) error {
	for start := 0; start < len(bars); start += s.chunkSize {
		end := min(start+s.chunkSize, len(bars))
		q, args := buildBarInsert(s.table, bars[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
	}
	return nil
}

func buildBarSelect(table string, tickers []string) (string, []any) {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(tickers)), ",")
	args := make([]any, len(tickers))
	for i, t := range tickers {
		args[i] = t
	}
	q := fmt.Sprintf(`SELECT date, ticker, open, high, low, close, volume
FROM %s FINAL
WHERE ticker IN (%s)
ORDER BY ticker ASC, date ASC`, table, marks)
	return q, args
}

func buildBarInsert(table string, bars []models.Bar) (string, []any) {
	values := make([]string, 0, len(bars))
	args := make([]any, 0, len(bars)*7)
	for _, b := range bars {
		if b.Ticker == "" || b.Date.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, models.NormalizeDate(b.Date), b.Ticker, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (date, ticker, open, high, low, close, volume) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}
