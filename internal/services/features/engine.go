package features

import (
	"math"
	"time"

	"RiskCast/internal/domain/models"
)

// Window sizes used by GenerateFeatures.
const (
	ShortWindow   = 5
	LongWindow    = 20
	RSIWindow     = 14
	FastSpan      = 12
	SlowSpan      = 26
	SignalSpan    = 9
	ForwardWindow = 5
)

var lags = []int{1, 2, 3, 5}

// GenerateFeatures turns raw daily bars into the feature and label table.
//
// Rows are ordered by ticker then date. Rows lacking return_lag5 or volatility_20d are
// dropped. Rows with undefined labels are kept so the most recent row is available for
// inference; training callers must drop them. Risk thresholds are computed once over
// every retained row with a defined future_volatility, across all tickers.
func GenerateFeatures(bars []models.Bar) *Table {
	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Date = models.NormalizeDate(sorted[i].Date)
	}
	models.SortBars(sorted)
	sorted = models.DedupeBars(sorted)

	b := newBuilder(len(sorted))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Ticker == sorted[start].Ticker {
			end++
		}
		b.addTicker(sorted[start:end])
		start = end
	}

	t := b.table()
	fv, _ := t.Column(ColFutureVol)
	th := ComputeThresholds(fv)
	t.mustAddColumn(ColRiskClass, th.ClassifyAll(fv))
	t.Thresholds = th
	return t
}

type builder struct {
	tickers []string
	dates   []time.Time
	cols    map[string][]float64
}

func newBuilder(capacity int) *builder {
	b := &builder{
		tickers: make([]string, 0, capacity),
		dates:   make([]time.Time, 0, capacity),
		cols:    make(map[string][]float64),
	}
	for _, c := range append(append([]string{}, FeatureColumns...), ColTargetReturn, ColFutureVol) {
		b.cols[c] = make([]float64, 0, capacity)
	}
	return b
}

// addTicker computes every column over one ticker's full history, then appends the
// rows that have enough history.
func (b *builder) addTicker(bars []models.Bar) {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		if bar.Close == 0 || math.IsInf(bar.Close, 0) {
			closes[i] = math.NaN()
		}
	}

	ret := SimpleReturns(closes)
	ma5 := RollingMean(closes, ShortWindow)
	ma20 := RollingMean(closes, LongWindow)
	pvm := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(ma20[i]) && ma20[i] != 0 {
			pvm[i] = (closes[i] - ma20[i]) / ma20[i]
		}
	}
	ema12 := EMA(closes, FastSpan)
	ema26 := EMA(closes, SlowSpan)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}

	series := map[string][]float64{
		ColClose:         closes,
		ColReturn:        ret,
		ColVolatility5d:  RollingStd(ret, ShortWindow),
		ColVolatility20d: RollingStd(ret, LongWindow),
		ColMA5d:          ma5,
		ColMA20d:         ma20,
		ColPriceVsMA20:   pvm,
		ColRSI14:         RSI(closes, RSIWindow),
		ColEMA12:         ema12,
		ColEMA26:         ema26,
		ColMACD:          macd,
		ColMACDSignal:    EMA(macd, SignalSpan),
		ColTargetReturn:  Shift(ret, -1),
		ColFutureVol:     ForwardStd(ret, ForwardWindow),
	}
	for _, lag := range lags {
		series[lagColumn(lag)] = Shift(ret, lag)
	}

	lag5 := series[ColReturnLag5]
	vol20 := series[ColVolatility20d]
	for i, bar := range bars {
		if math.IsNaN(lag5[i]) || math.IsNaN(vol20[i]) {
			continue
		}
		b.tickers = append(b.tickers, bar.Ticker)
		b.dates = append(b.dates, bar.Date)
		for name, s := range series {
			b.cols[name] = append(b.cols[name], s[i])
		}
	}
}

func (b *builder) table() *Table {
	t := NewTable(b.tickers, b.dates)
	for _, c := range FeatureColumns {
		t.mustAddColumn(c, b.cols[c])
	}
	t.mustAddColumn(ColTargetReturn, b.cols[ColTargetReturn])
	t.mustAddColumn(ColFutureVol, b.cols[ColFutureVol])
	return t
}

func lagColumn(lag int) string {
	switch lag {
	case 1:
		return ColReturnLag1
	case 2:
		return ColReturnLag2
	case 3:
		return ColReturnLag3
	default:
		return ColReturnLag5
	}
}
