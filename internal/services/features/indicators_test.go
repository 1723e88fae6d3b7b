package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleReturns(t *testing.T) {
	got := SimpleReturns([]float64{100, 110, 99, 0, 10})
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 0.1, got[1], 1e-12)
	assert.InDelta(t, -0.1, got[2], 1e-12)
	assert.InDelta(t, -1, got[3], 1e-12)
	assert.True(t, math.IsNaN(got[4]), "non-positive previous close")
}

func TestShift(t *testing.T) {
	in := []float64{1, 2, 3, 4}
	sameFloats(t, []float64{math.NaN(), math.NaN(), 1, 2}, Shift(in, 2), "lag")
	sameFloats(t, []float64{2, 3, 4, math.NaN()}, Shift(in, -1), "lead")
}

func TestRollingStats(t *testing.T) {
	in := []float64{math.NaN(), 1, 2, 3, 4, 5}
	sameFloats(t, []float64{math.NaN(), math.NaN(), math.NaN(), 2, 3, 4}, RollingMean(in, 3), "mean")
	sameFloats(t, []float64{math.NaN(), math.NaN(), math.NaN(), 1, 1, 1}, RollingStd(in, 3), "std")
}

func TestForwardStd(t *testing.T) {
	in := []float64{0, 1, 2, 3, 10}
	got := ForwardStd(in, 3)
	assert.InDelta(t, 1, got[0], 1e-12)
	assert.InDelta(t, math.Sqrt(19), got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]))
	assert.True(t, math.IsNaN(got[4]))
}

func TestEMA(t *testing.T) {
	got := EMA([]float64{10, 20, 30}, 3) // alpha 0.5
	sameFloats(t, []float64{10, 15, 22.5}, got, "ema")
}

func TestRSI(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5}
	for _, v := range RSI(up, 3)[3:] {
		assert.Equal(t, 50.0, v, "no losses fills the neutral value")
	}

	mixed := []float64{10, 11, 10, 12}
	got := RSI(mixed, 3)
	// gains 1,0,2 -> 1 ; losses 0,1,0 -> 1/3
	assert.InDelta(t, 100-100/(1+3.0), got[3], 1e-12)
	assert.True(t, math.IsNaN(got[2]))
}
