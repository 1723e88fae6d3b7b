package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"RiskCast/internal/domain/models"

	"gonum.org/v1/gonum/mat"
)

// Column names produced by GenerateFeatures.
const (
	ColClose         = "close"
	ColReturn        = "return"
	ColReturnLag1    = "return_lag1"
	ColReturnLag2    = "return_lag2"
	ColReturnLag3    = "return_lag3"
	ColReturnLag5    = "return_lag5"
	ColVolatility5d  = "volatility_5d"
	ColVolatility20d = "volatility_20d"
	ColMA5d          = "ma_5d"
	ColMA20d         = "ma_20d"
	ColPriceVsMA20   = "price_vs_ma20"
	ColRSI14         = "rsi_14"
	ColEMA12         = "ema_12"
	ColEMA26         = "ema_26"
	ColMACD          = "macd"
	ColMACDSignal    = "macd_signal"
	ColTargetReturn  = "target_return_next_day"
	ColFutureVol     = "future_volatility"
	ColRiskClass     = "risk_class"
)

// FeatureColumns lists the point-in-time columns in output order.
var FeatureColumns = []string{
	ColClose, ColReturn,
	ColReturnLag1, ColReturnLag2, ColReturnLag3, ColReturnLag5,
	ColVolatility5d, ColVolatility20d, ColMA5d, ColMA20d, ColPriceVsMA20,
	ColRSI14, ColEMA12, ColEMA26, ColMACD, ColMACDSignal,
}

// LabelColumns are forward-looking and must never be used as model inputs.
var LabelColumns = []string{ColTargetReturn, ColFutureVol, ColRiskClass}

// DefaultModelFeatures is the ordered input list used to fit a bundle.
var DefaultModelFeatures = []string{
	ColReturnLag1, ColReturnLag2, ColReturnLag3, ColReturnLag5,
	ColVolatility5d, ColVolatility20d, ColPriceVsMA20, ColRSI14,
}

var (
	ErrEmptyTable    = fmt.Errorf("%w: table is empty", models.ErrInvalidInput)
	ErrMissingColumn = fmt.Errorf("%w: missing column", models.ErrInvalidInput)
	ErrLabelAsInput  = fmt.Errorf("%w: label column used as model input", models.ErrInvalidInput)
	ErrUndefined     = fmt.Errorf("%w: undefined feature value", models.ErrInvalidInput)
)

// IsLabel reports whether name is a forward-looking label column.
func IsLabel(name string) bool {
	for _, c := range LabelColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Table is a columnar frame of per-ticker, per-date rows. NaN marks an undefined value.
// Tables are treated as immutable once returned; operations produce new tables.
type Table struct {
	tickers    []string
	dates      []time.Time
	order      []string
	cols       map[string][]float64
	Thresholds RiskThresholds
}

// NewTable creates a table with the given row keys and no columns.
func NewTable(tickers []string, dates []time.Time) *Table {
	if len(tickers) != len(dates) {
		panic("features: tickers and dates length mismatch")
	}
	return &Table{
		tickers:    tickers,
		dates:      dates,
		cols:       make(map[string][]float64),
		Thresholds: RiskThresholds{Low: math.NaN(), High: math.NaN()},
	}
}

// AddColumn sets a column, replacing any existing one with the same name.
func (t *Table) AddColumn(name string, values []float64) error {
	if len(values) != t.Len() {
		return fmt.Errorf("column %s: got %d values for %d rows", name, len(values), t.Len())
	}
	if _, ok := t.cols[name]; !ok {
		t.order = append(t.order, name)
	}
	t.cols[name] = values
	return nil
}

// mustAddColumn is AddColumn for columns built alongside the row index, where
// a length mismatch is a bug in this package.
func (t *Table) mustAddColumn(name string, values []float64) {
	if err := t.AddColumn(name, values); err != nil {
		panic(err)
	}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tickers)
}

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the values of a column. The slice must not be modified.
func (t *Table) Column(name string) ([]float64, bool) {
	v, ok := t.cols[name]
	return v, ok
}

func (t *Table) Ticker(i int) string  { return t.tickers[i] }
func (t *Table) Date(i int) time.Time { return t.dates[i] }
func (t *Table) Tickers() []string    { return append([]string(nil), t.tickers...) }
func (t *Table) Dates() []time.Time   { return append([]time.Time(nil), t.dates...) }

// Value returns the cell at row i, or NaN if the column is absent.
func (t *Table) Value(i int, name string) float64 {
	c, ok := t.cols[name]
	if !ok {
		return math.NaN()
	}
	return c[i]
}

// Take builds a new table from the given row indices, in that order.
func (t *Table) Take(idx []int) *Table {
	tickers := make([]string, len(idx))
	dates := make([]time.Time, len(idx))
	for k, i := range idx {
		tickers[k] = t.tickers[i]
		dates[k] = t.dates[i]
	}
	out := NewTable(tickers, dates)
	out.Thresholds = t.Thresholds
	for _, name := range t.order {
		src := t.cols[name]
		dst := make([]float64, len(idx))
		for k, i := range idx {
			dst[k] = src[i]
		}
		out.order = append(out.order, name)
		out.cols[name] = dst
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// DropUndefined removes rows where any of the named columns is NaN.
// Missing columns fail with ErrMissingColumn.
func (t *Table) DropUndefined(names ...string) (*Table, error) {
	cols := make([][]float64, 0, len(names))
	for _, n := range names {
		c, ok := t.cols[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
		cols = append(cols, c)
	}
	return t.Filter(func(i int) bool {
		for _, c := range cols {
			if math.IsNaN(c[i]) {
				return false
			}
		}
		return true
	}), nil
}

// SortedByDate returns a copy stably sorted by date; equal dates keep their relative order.
func (t *Table) SortedByDate() *Table {
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.dates[idx[a]].Before(t.dates[idx[b]])
	})
	return t.Take(idx)
}

// Row materializes row i.
func (t *Table) Row(i int) FeatureRow {
	vals := make(map[string]float64, len(t.order))
	for _, n := range t.order {
		vals[n] = t.cols[n][i]
	}
	return FeatureRow{Ticker: t.tickers[i], Date: t.dates[i], Values: vals}
}

// Last returns the most recent row of the table.
func (t *Table) Last() (FeatureRow, bool) {
	if t.Len() == 0 {
		return FeatureRow{}, false
	}
	return t.Row(t.Len() - 1), true
}

// Matrix builds an n x len(features) design matrix. Label columns are rejected.
func (t *Table) Matrix(features []string) (*mat.Dense, error) {
	if t.Len() == 0 {
		return nil, ErrEmptyTable
	}
	if err := ValidateInputs(features); err != nil {
		return nil, err
	}
	cols := make([][]float64, len(features))
	for j, f := range features {
		c, ok := t.cols[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, f)
		}
		cols[j] = c
	}
	m := mat.NewDense(t.Len(), len(features), nil)
	for i := 0; i < t.Len(); i++ {
		for j := range features {
			v := cols[j][i]
			if math.IsNaN(v) {
				return nil, fmt.Errorf("%w: %s at row %d (%s)", ErrUndefined, features[j], i, t.tickers[i])
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// ValidateInputs checks a model input list for emptiness, duplicates and label leakage.
func ValidateInputs(features []string) error {
	if len(features) == 0 {
		return fmt.Errorf("%w: empty feature list", models.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if IsLabel(f) {
			return fmt.Errorf("%w: %s", ErrLabelAsInput, f)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("%w: duplicate feature %s", models.ErrInvalidInput, f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

// FeatureRow is one derived per-ticker, per-date vector.
type FeatureRow struct {
	Ticker string
	Date   time.Time
	Values map[string]float64
}

// Get returns the named value or NaN when absent.
func (r FeatureRow) Get(name string) float64 {
	v, ok := r.Values[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// Vector returns the model input vector in the order of features.
func (r FeatureRow) Vector(features []string) ([]float64, error) {
	if err := ValidateInputs(features); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, f := range features {
		v, ok := r.Values[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, f)
		}
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s", ErrUndefined, f)
		}
		out[i] = v
	}
	return out, nil
}

// IsUndefined reports whether err came from a NaN input value.
func IsUndefined(err error) bool { return errors.Is(err, ErrUndefined) }
