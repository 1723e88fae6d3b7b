package ml

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s := FitScaler(x)
	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	row, err := s.Transform([]float64{2.5, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, row)

	_, err = s.Transform([]float64{1})
	assert.Error(t, err)
}

func TestRidge_RecoversLinearRelation(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	n := 300
	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b, c := r.NormFloat64(), r.NormFloat64(), r.NormFloat64()
		x.SetRow(i, []float64{a, b, c})
		y[i] = 0.5 + 2*a - 3*b + 0.01*r.NormFloat64()
	}
	m, err := FitRidge(x, y, 1e-6)
	require.NoError(t, err)

	got, err := m.Predict([]float64{1, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -0.5, got, 0.05)

	_, err = FitRidge(x, y[:10], 1)
	assert.Error(t, err)
}

// vol20Dataset mirrors a feature matrix where the class is volatility_20d > 0.02.
func vol20Dataset(n int, seed int64) (*mat.Dense, []int) {
	r := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 8, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 8)
		for j := range row {
			row[j] = r.NormFloat64() * 0.01
		}
		row[5] = r.Float64() * 0.04
		row[7] = 30 + r.Float64()*40
		x.SetRow(i, row)
		if row[5] > 0.02 {
			y[i] = 1
		}
	}
	return x, y
}

func TestLogistic_LearnsVolatilityRule(t *testing.T) {
	x, y := vol20Dataset(200, 42)
	m, err := FitLogistic(x, y, DefaultLogisticOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, m.Classes())

	correct := 0
	for i := range y {
		pred, err := m.Predict(x.RawRowView(i))
		require.NoError(t, err)
		if pred == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(y)), 0.7)

	p, err := m.PredictProba(x.RawRowView(0))
	require.NoError(t, err)
	assert.InDelta(t, 1, floats.Sum(p), 1e-9)
}

func TestLogistic_Deterministic(t *testing.T) {
	x, y := vol20Dataset(100, 3)
	a, err := FitLogistic(x, y, DefaultLogisticOptions())
	require.NoError(t, err)
	b, err := FitLogistic(x, y, DefaultLogisticOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Weights, b.Weights)
}

func TestLogistic_SingleClass(t *testing.T) {
	x, _ := vol20Dataset(10, 1)
	_, err := FitLogistic(x, make([]int, 10), DefaultLogisticOptions())
	assert.Error(t, err)
}

func TestPCA(t *testing.T) {
	x, _ := vol20Dataset(120, 5)
	p, err := FitPCA(x, 3)
	require.NoError(t, err)
	require.Len(t, p.Components, 3)

	for i, a := range p.Components {
		assert.InDelta(t, 1, floats.Norm(a, 2), 1e-9)
		for _, b := range p.Components[i+1:] {
			assert.InDelta(t, 0, floats.Dot(a, b), 1e-9)
		}
	}
	assert.GreaterOrEqual(t, p.ExplainedVariance[0], p.ExplainedVariance[1])

	out, err := p.Transform(x.RawRowView(0))
	require.NoError(t, err)
	assert.Len(t, out, 3)

	small, err := FitPCA(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 7}), 5)
	require.NoError(t, err)
	assert.Len(t, small.Components, 2, "capped by the rank bound")
}

func TestKMeans_SeparatesBlobs(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}
	x := mat.NewDense(90, 2, nil)
	for i := 0; i < 90; i++ {
		c := centers[i%3]
		x.SetRow(i, []float64{c[0] + r.NormFloat64()*0.5, c[1] + r.NormFloat64()*0.5})
	}
	m, err := FitKMeans(x, DefaultKMeansOptions())
	require.NoError(t, err)
	require.Len(t, m.Centroids, 3)

	ids := make(map[int]int)
	for i := 0; i < 90; i++ {
		id, err := m.Predict(x.RawRowView(i))
		require.NoError(t, err)
		if prev, ok := ids[i%3]; ok {
			assert.Equal(t, prev, id, "row %d", i)
		}
		ids[i%3] = id
	}
	assert.Len(t, map[int]bool{ids[0]: true, ids[1]: true, ids[2]: true}, 3)

	again, err := FitKMeans(x, DefaultKMeansOptions())
	require.NoError(t, err)
	assert.Equal(t, m.Centroids, again.Centroids, "seeded runs repeat")

	_, err = m.Predict([]float64{1})
	assert.Error(t, err)
	_, err = FitKMeans(mat.NewDense(2, 2, nil), DefaultKMeansOptions())
	assert.Error(t, err)
}

func TestEstimators_JSONRoundTrip(t *testing.T) {
	x, y := vol20Dataset(80, 4)
	clf, err := FitLogistic(x, y, DefaultLogisticOptions())
	require.NoError(t, err)

	data, err := json.Marshal(clf)
	require.NoError(t, err)
	var back LogisticClassifier
	require.NoError(t, json.Unmarshal(data, &back))

	row := x.RawRowView(3)
	want, _ := clf.PredictProba(row)
	got, err := back.PredictProba(row)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}
