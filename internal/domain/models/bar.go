package models

import (
	"sort"
	"time"
)

// Bar represents one daily OHLCV observation for a ticker.
type Bar struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// NormalizeDate truncates t to midnight UTC so bars from different sources compare equal.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortBars orders bars by ticker then date, in place.
func SortBars(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Ticker != bars[j].Ticker {
			return bars[i].Ticker < bars[j].Ticker
		}
		return bars[i].Date.Before(bars[j].Date)
	})
}

// DedupeBars keeps the last bar for each (ticker, calendar day in UTC). Input must be sorted.
func DedupeBars(bars []Bar) []Bar {
	if len(bars) < 2 {
		return bars
	}
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		n := len(out)
		if n > 0 && out[n-1].Ticker == b.Ticker && NormalizeDate(out[n-1].Date).Equal(NormalizeDate(b.Date)) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
