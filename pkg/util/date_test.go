package util

import (
	"reflect"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-10-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected date %v", got)
	}
	if FormatDate(got) != "2024-10-10" {
		t.Fatalf("unexpected format %s", FormatDate(got))
	}
}

func TestParseDateRFC3339(t *testing.T) {
	got, err := ParseDate("2024-10-10T23:10:10+02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, err := ParseDate("10/10/2024"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseDurationDefault(t *testing.T) {
	if d := ParseDurationDefault("", time.Hour); d != time.Hour {
		t.Fatalf("expected default, got %v", d)
	}
	if d := ParseDurationDefault("bogus", time.Hour); d != time.Hour {
		t.Fatalf("expected default, got %v", d)
	}
	if d := ParseDurationDefault("90s", time.Hour); d != 90*time.Second {
		t.Fatalf("unexpected %v", d)
	}
}

func TestParseTickers(t *testing.T) {
	got := ParseTickers(" aapl, MSFT,,msft ,tsla")
	want := []string{"AAPL", "MSFT", "TSLA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if ParseIntDefault("x", 7) != 7 || ParseIntDefault("3", 7) != 3 {
		t.Fatalf("ParseIntDefault mismatch")
	}
}
