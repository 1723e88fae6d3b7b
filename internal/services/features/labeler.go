package features

import (
	"math"
	"sort"
)

// Tercile cutoffs for the risk classes.
const (
	LowQuantile  = 0.33
	HighQuantile = 0.66
)

// Risk classes.
const (
	RiskLow    = 0
	RiskMedium = 1
	RiskHigh   = 2
)

// RiskThresholds are the global forward-volatility cutoffs of one labeling pass.
type RiskThresholds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Defined reports whether both cutoffs are usable.
func (th RiskThresholds) Defined() bool {
	return !math.IsNaN(th.Low) && !math.IsNaN(th.High)
}

// Classify maps a forward volatility to a risk class. Undefined input stays undefined.
func (th RiskThresholds) Classify(v float64) float64 {
	if math.IsNaN(v) || !th.Defined() {
		return math.NaN()
	}
	switch {
	case v <= th.Low:
		return RiskLow
	case v <= th.High:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ClassifyAll applies Classify element-wise.
func (th RiskThresholds) ClassifyAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = th.Classify(v)
	}
	return out
}

// ComputeThresholds returns the 33rd/66th percentile cutoffs over the defined values.
// No defined values yields NaN cutoffs.
func ComputeThresholds(values []float64) RiskThresholds {
	defined := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			defined = append(defined, v)
		}
	}
	if len(defined) == 0 {
		return RiskThresholds{Low: math.NaN(), High: math.NaN()}
	}
	sort.Float64s(defined)
	return RiskThresholds{
		Low:  Quantile(defined, LowQuantile),
		High: Quantile(defined, HighQuantile),
	}
}

// Quantile computes the p-quantile of sorted data with linear interpolation
// at position p*(n-1). gonum's stat.Quantile uses a different estimator, so the
// cutoffs would not match numpy-style percentiles.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// LabelWith relabels a table using persisted thresholds, leaving the input untouched.
func LabelWith(t *Table, th RiskThresholds) (*Table, error) {
	fv, ok := t.Column(ColFutureVol)
	if !ok {
		return nil, ErrMissingColumn
	}
	out := t.Take(allRows(t.Len()))
	if err := out.AddColumn(ColRiskClass, th.ClassifyAll(fv)); err != nil {
		return nil, err
	}
	out.Thresholds = th
	return out, nil
}

// ClassShares returns the fraction of defined rows in each risk class.
func ClassShares(t *Table) map[int]float64 {
	rc, ok := t.Column(ColRiskClass)
	if !ok {
		return nil
	}
	counts := make([]float64, 3)
	for _, v := range rc {
		if math.IsNaN(v) || v < RiskLow || v > RiskHigh {
			continue
		}
		counts[int(v)]++
	}
	total := 0.0
	for _, c := range counts {
		total += c
	}
	out := make(map[int]float64, 3)
	if total == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
