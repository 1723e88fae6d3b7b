package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile_LinearInterpolation(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.99, Quantile(data, 0.33), 1e-12)
	assert.InDelta(t, 2.98, Quantile(data, 0.66), 1e-12)
	assert.Equal(t, 4.0, Quantile(data, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.5))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestComputeThresholds_IgnoresUndefined(t *testing.T) {
	th := ComputeThresholds([]float64{4, math.NaN(), 1, 3, 2, math.NaN()})
	assert.InDelta(t, 1.99, th.Low, 1e-12)
	assert.InDelta(t, 2.98, th.High, 1e-12)

	none := ComputeThresholds([]float64{math.NaN()})
	assert.False(t, none.Defined())
	assert.True(t, math.IsNaN(none.Classify(1)))
}

func TestRiskThresholds_Classify(t *testing.T) {
	th := RiskThresholds{Low: 0.01, High: 0.02}
	cases := []struct {
		v    float64
		want float64
	}{
		{0.005, RiskLow},
		{0.01, RiskLow},
		{0.015, RiskMedium},
		{0.02, RiskMedium},
		{0.03, RiskHigh},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, th.Classify(c.v), "v=%v", c.v)
	}
	assert.True(t, math.IsNaN(th.Classify(math.NaN())))
}

func TestLabelWith(t *testing.T) {
	tbl := GenerateFeatures(randomBars("AAA", 80, 4, 0.02))
	th := RiskThresholds{Low: 0, High: 0}

	relabeled, err := LabelWith(tbl, th)
	require.NoError(t, err)
	assert.Equal(t, th, relabeled.Thresholds)

	rc, _ := relabeled.Column(ColRiskClass)
	fv, _ := relabeled.Column(ColFutureVol)
	for i := range rc {
		if math.IsNaN(fv[i]) {
			continue
		}
		assert.Equal(t, float64(RiskHigh), rc[i])
	}
	orig, _ := tbl.Column(ColRiskClass)
	assert.NotEqual(t, orig, rc, "input table is left untouched")
}

func TestClassShares(t *testing.T) {
	tbl := GenerateFeatures(randomBars("AAA", 200, 6, 0.02))
	shares := ClassShares(tbl)
	total := 0.0
	for _, s := range shares {
		total += s
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.InDelta(t, 0.33, shares[RiskLow], 0.05)
}
