package ml

import (
	"fmt"

	"RiskCast/internal/domain/models"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column and divides it by its population std.
// Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns per-column statistics from x.
func FitScaler(x mat.Matrix) *StandardScaler {
	r, c := x.Dims()
	s := &StandardScaler{Mean: make([]float64, c), Scale: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || r < 2 {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s
}

func (s *StandardScaler) dim() int { return len(s.Mean) }

// Transform scales a single row.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != s.dim() {
		return nil, fmt.Errorf("%w: got %d features, want %d", models.ErrInvalidInput, len(x), s.dim())
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformMatrix scales every row of x into a new matrix.
func (s *StandardScaler) TransformMatrix(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out
}
