package repository

import (
	"context"

	"RiskCast/internal/domain/models"
)

// BarSource provides daily bars for a set of tickers.
// The result may be empty; rows are sorted by ticker then date.
type BarSource interface {
	Fetch(ctx context.Context, tickers []string, useCache bool) ([]models.Bar, error)
}

// BarFetcher retrieves the full daily history of a single ticker from a provider.
type BarFetcher interface {
	FetchDaily(ctx context.Context, ticker string) ([]models.Bar, error)
}

// BarArchive persists bars for later replay.
type BarArchive interface {
	SaveBars(ctx context.Context, bars []models.Bar) error
}
