package quality

import (
	"math"
	"sort"

	"RiskCast/internal/domain/models"
)

// DefaultMinRows is the per-ticker history below which a dataset fails the check.
const DefaultMinRows = 50

// IntegrityReport summarizes raw bar problems before feature generation.
type IntegrityReport struct {
	Passed          bool           `json:"passed"`
	MissingValues   map[string]int `json:"missing_values"`
	EmptyTickerData []string       `json:"empty_ticker_data"`
	Error           string         `json:"error,omitempty"`
}

// CheckIntegrity counts undefined OHLCV values and flags tickers with fewer than
// minRows bars. Missing values are reported but never fail the check.
func CheckIntegrity(bars []models.Bar, minRows int) IntegrityReport {
	r := IntegrityReport{Passed: true, MissingValues: map[string]int{}, EmptyTickerData: []string{}}
	if len(bars) == 0 {
		r.Passed = false
		r.Error = "no bars"
		return r
	}
	if minRows <= 0 {
		minRows = DefaultMinRows
	}

	counts := map[string]int{}
	for _, b := range bars {
		counts[b.Ticker]++
		for col, v := range map[string]float64{
			"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close, "volume": b.Volume,
		} {
			if math.IsNaN(v) {
				r.MissingValues[col]++
			}
		}
		if b.Date.IsZero() {
			r.MissingValues["date"]++
		}
	}
	for ticker, n := range counts {
		if n < minRows {
			r.EmptyTickerData = append(r.EmptyTickerData, ticker)
			r.Passed = false
		}
	}
	sort.Strings(r.EmptyTickerData)
	return r
}
