package ml

import (
	"errors"
	"fmt"

	"RiskCast/internal/domain/service"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var _ service.Regressor = (*RidgeRegressor)(nil)

// RidgeRegressor is an L2-regularized linear model fitted on standardized inputs.
type RidgeRegressor struct {
	Alpha     float64         `json:"alpha"`
	Scaler    *StandardScaler `json:"scaler"`
	Coef      []float64       `json:"coef"`
	Intercept float64         `json:"intercept"`
}

// FitRidge solves (XᵀX + αI)β = Xᵀ(y - ȳ) over standardized X.
func FitRidge(x *mat.Dense, y []float64, alpha float64) (*RidgeRegressor, error) {
	r, c := x.Dims()
	if r == 0 || r != len(y) {
		return nil, fmt.Errorf("fit ridge: %d rows, %d targets", r, len(y))
	}
	if alpha < 0 {
		return nil, errors.New("fit ridge: alpha must be non-negative")
	}
	scaler := FitScaler(x)
	xs := scaler.TransformMatrix(x)

	yMean := stat.Mean(y, nil)
	yc := make([]float64, len(y))
	copy(yc, y)
	floats.AddConst(-yMean, yc)

	var gram mat.SymDense
	gram.SymOuterK(1, xs.T())
	for j := 0; j < c; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(xs.T(), mat.NewVecDense(len(yc), yc))

	var beta mat.VecDense
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); ok {
		if err := chol.SolveVecTo(&beta, &rhs); err != nil {
			return nil, fmt.Errorf("fit ridge: %w", err)
		}
	} else if err := beta.SolveVec(&gram, &rhs); err != nil {
		return nil, fmt.Errorf("fit ridge: singular system: %w", err)
	}

	return &RidgeRegressor{
		Alpha:     alpha,
		Scaler:    scaler,
		Coef:      mat.Col(nil, 0, &beta),
		Intercept: yMean,
	}, nil
}

func (m *RidgeRegressor) Predict(x []float64) (float64, error) {
	xs, err := m.Scaler.Transform(x)
	if err != nil {
		return 0, fmt.Errorf("ridge predict: %w", err)
	}
	return floats.Dot(xs, m.Coef) + m.Intercept, nil
}

// PredictMatrix predicts every row of x.
func (m *RidgeRegressor) PredictMatrix(x *mat.Dense) ([]float64, error) {
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		v, err := m.Predict(x.RawRowView(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
