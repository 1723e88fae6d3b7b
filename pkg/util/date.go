package util

import (
	"fmt"
	"time"
)

// DateLayout is the day layout used by bar providers and the CSV cache.
const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD, or RFC3339 as a fallback, into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// ParseDurationDefault parses a Go duration or returns def if empty/invalid.
func ParseDurationDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
