package ml

import (
	"errors"
	"fmt"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/domain/service"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var _ service.Projector = (*PCA)(nil)

// PCA projects standardized rows onto the leading principal components.
type PCA struct {
	Scaler *StandardScaler `json:"scaler"`
	// Components holds one unit vector per row, ordered by explained variance.
	Components        [][]float64 `json:"components"`
	ExplainedVariance []float64   `json:"explained_variance"`
}

// FitPCA keeps up to k components; k is capped by the rank bound min(rows-1, cols).
func FitPCA(x *mat.Dense, k int) (*PCA, error) {
	r, c := x.Dims()
	if r < 2 {
		return nil, fmt.Errorf("fit pca: need at least 2 rows, got %d", r)
	}
	if k <= 0 {
		return nil, errors.New("fit pca: components must be positive")
	}
	k = min(k, c, r-1)

	scaler := FitScaler(x)
	xs := scaler.TransformMatrix(x)

	var pc stat.PC
	if ok := pc.PrincipalComponents(xs, nil); !ok {
		return nil, errors.New("fit pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	p := &PCA{Scaler: scaler, Components: make([][]float64, k), ExplainedVariance: vars[:k]}
	for i := 0; i < k; i++ {
		p.Components[i] = mat.Col(nil, i, &vecs)
	}
	return p, nil
}

func (p *PCA) Transform(x []float64) ([]float64, error) {
	xs, err := p.Scaler.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("pca transform: %w", err)
	}
	out := make([]float64, len(p.Components))
	for i, comp := range p.Components {
		if len(comp) != len(xs) {
			return nil, fmt.Errorf("%w: component %d has %d dims", models.ErrInvalidInput, i, len(comp))
		}
		out[i] = floats.Dot(comp, xs)
	}
	return out, nil
}

// TransformMatrix projects every row of x.
func (p *PCA) TransformMatrix(x *mat.Dense) (*mat.Dense, error) {
	r, _ := x.Dims()
	out := mat.NewDense(r, len(p.Components), nil)
	for i := 0; i < r; i++ {
		row, err := p.Transform(x.RawRowView(i))
		if err != nil {
			return nil, err
		}
		out.SetRow(i, row)
	}
	return out, nil
}
