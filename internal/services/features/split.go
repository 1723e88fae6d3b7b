package features

import (
	"fmt"
	"math"

	"RiskCast/internal/domain/models"
)

var ErrEmptyTrain = fmt.Errorf("%w: train partition would be empty", models.ErrInvalidInput)

// SplitSize is the held-out size: either a fraction in (0, 1) or an absolute row count.
type SplitSize struct {
	fraction float64
	count    int
}

// Fraction holds out round(N*f) rows of the cleaned table.
func Fraction(f float64) SplitSize { return SplitSize{fraction: f} }

// Count holds out the trailing n rows of the cleaned table.
func Count(n int) SplitSize { return SplitSize{count: n} }

// SizeFromFloat interprets v < 1 as a fraction and anything else as a row count.
func SizeFromFloat(v float64) SplitSize {
	if v > 0 && v < 1 {
		return Fraction(v)
	}
	return Count(int(v))
}

func (s SplitSize) String() string {
	if s.fraction != 0 {
		return fmt.Sprintf("fraction=%g", s.fraction)
	}
	return fmt.Sprintf("count=%d", s.count)
}

func (s SplitSize) testRows(n int) (int, error) {
	if s.fraction != 0 {
		if s.fraction <= 0 || s.fraction >= 1 || math.IsNaN(s.fraction) {
			return 0, fmt.Errorf("%w: test fraction must be in (0,1), got %g", models.ErrInvalidInput, s.fraction)
		}
		return int(math.Round(float64(n) * s.fraction)), nil
	}
	if s.count <= 0 {
		return 0, fmt.Errorf("%w: test count must be positive, got %d", models.ErrInvalidInput, s.count)
	}
	return s.count, nil
}

type splitConfig struct {
	alignDates bool
}

// SplitOption configures Split.
type SplitOption func(*splitConfig)

// WithDateAlignedCutoff moves the cutoff earlier so rows sharing the first test date
// all land in the test partition.
func WithDateAlignedCutoff() SplitOption {
	return func(c *splitConfig) { c.alignDates = true }
}

// Split partitions a labeled table into train and test sets along the date axis.
//
// Rows with an undefined target_return_next_day or risk_class are dropped, the rest is
// stably ordered by date and cut by position. Nothing is shuffled: every train row
// precedes every test row.
func Split(t *Table, size SplitSize, opts ...SplitOption) (train, test *Table, err error) {
	cfg := &splitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if t.Len() == 0 {
		return nil, nil, ErrEmptyTable
	}
	clean, err := t.DropUndefined(ColTargetReturn, ColRiskClass)
	if err != nil {
		return nil, nil, err
	}
	clean = clean.SortedByDate()

	n := clean.Len()
	nTest, err := size.testRows(n)
	if err != nil {
		return nil, nil, err
	}
	cut := n - nTest
	if cut <= 0 {
		return nil, nil, fmt.Errorf("%w: %d cleaned rows, %s", ErrEmptyTrain, n, size)
	}
	if cfg.alignDates && cut < n {
		d := clean.Date(cut)
		for cut > 0 && clean.Date(cut-1).Equal(d) {
			cut--
		}
		if cut == 0 {
			return nil, nil, fmt.Errorf("%w: every row shares the cutoff date", ErrEmptyTrain)
		}
	}

	trainIdx := make([]int, cut)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	testIdx := make([]int, n-cut)
	for i := range testIdx {
		testIdx[i] = cut + i
	}
	return clean.Take(trainIdx), clean.Take(testIdx), nil
}
