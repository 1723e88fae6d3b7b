package ml

import (
	"fmt"
	"math"
	"sort"

	"RiskCast/internal/domain/service"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var _ service.Classifier = (*LogisticClassifier)(nil)

// LogisticOptions controls the batch gradient descent of FitLogistic.
type LogisticOptions struct {
	LearningRate float64
	Iterations   int
	L2           float64
}

// DefaultLogisticOptions are tuned for a handful of standardized features.
func DefaultLogisticOptions() LogisticOptions {
	return LogisticOptions{LearningRate: 0.5, Iterations: 500, L2: 1e-4}
}

// LogisticClassifier is a multinomial (softmax) logistic regression.
type LogisticClassifier struct {
	Scaler      *StandardScaler `json:"scaler"`
	ClassLabels []int           `json:"classes"`
	Weights     [][]float64     `json:"weights"`
	Bias        []float64       `json:"bias"`
}

// FitLogistic trains on x with integer labels y. Starting weights are zero, so the
// result is fully deterministic.
func FitLogistic(x *mat.Dense, y []int, opts LogisticOptions) (*LogisticClassifier, error) {
	r, c := x.Dims()
	if r == 0 || r != len(y) {
		return nil, fmt.Errorf("fit logistic: %d rows, %d labels", r, len(y))
	}
	classes := uniqueSorted(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("fit logistic: need at least 2 classes, got %v", classes)
	}
	index := make(map[int]int, len(classes))
	for i, cl := range classes {
		index[cl] = i
	}

	scaler := FitScaler(x)
	xs := scaler.TransformMatrix(x)
	k := len(classes)
	m := &LogisticClassifier{
		Scaler:      scaler,
		ClassLabels: classes,
		Weights:     make([][]float64, k),
		Bias:        make([]float64, k),
	}
	for i := range m.Weights {
		m.Weights[i] = make([]float64, c)
	}

	gradW := make([][]float64, k)
	for i := range gradW {
		gradW[i] = make([]float64, c)
	}
	gradB := make([]float64, k)
	probs := make([]float64, k)
	n := float64(r)

	for it := 0; it < opts.Iterations; it++ {
		for i := range gradW {
			clear(gradW[i])
		}
		clear(gradB)

		for i := 0; i < r; i++ {
			row := xs.RawRowView(i)
			m.softmax(row, probs)
			probs[index[y[i]]]--
			for cl := 0; cl < k; cl++ {
				floats.AddScaled(gradW[cl], probs[cl], row)
				gradB[cl] += probs[cl]
			}
		}
		for cl := 0; cl < k; cl++ {
			for j := 0; j < c; j++ {
				g := gradW[cl][j]/n + opts.L2*m.Weights[cl][j]
				m.Weights[cl][j] -= opts.LearningRate * g
			}
			m.Bias[cl] -= opts.LearningRate * gradB[cl] / n
		}
	}
	return m, nil
}

func (m *LogisticClassifier) softmax(xs []float64, out []float64) {
	for cl := range m.Weights {
		out[cl] = floats.Dot(m.Weights[cl], xs) + m.Bias[cl]
	}
	hi := floats.Max(out)
	sum := 0.0
	for cl := range out {
		out[cl] = math.Exp(out[cl] - hi)
		sum += out[cl]
	}
	floats.Scale(1/sum, out)
}

func (m *LogisticClassifier) Classes() []int {
	return append([]int(nil), m.ClassLabels...)
}

func (m *LogisticClassifier) PredictProba(x []float64) ([]float64, error) {
	xs, err := m.Scaler.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("logistic predict: %w", err)
	}
	out := make([]float64, len(m.ClassLabels))
	m.softmax(xs, out)
	return out, nil
}

// Predict returns the most probable class label.
func (m *LogisticClassifier) Predict(x []float64) (int, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return m.ClassLabels[floats.MaxIdx(p)], nil
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
