package ml

import (
	"fmt"
	"math"

	"RiskCast/internal/services/features"
)

// TrainConfig holds the estimator settings of one training run.
type TrainConfig struct {
	Features      []string
	RidgeAlpha    float64
	Logistic      LogisticOptions
	PCAComponents int
	KMeans        KMeansOptions
}

// DefaultTrainConfig matches the defaults of the training config section.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Features:      append([]string(nil), features.DefaultModelFeatures...),
		RidgeAlpha:    1.0,
		Logistic:      DefaultLogisticOptions(),
		PCAComponents: 3,
		KMeans:        DefaultKMeansOptions(),
	}
}

// Train fits a full bundle on a labeled train partition.
//
// The regressor predicts target_return_next_day, the classifier predicts risk_class,
// and k-means clusters the PCA projection of the inputs.
func Train(train *features.Table, cfg TrainConfig) (*Bundle, error) {
	x, err := train.Matrix(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	target, ok := train.Column(features.ColTargetReturn)
	if !ok {
		return nil, fmt.Errorf("train: %w: %s", features.ErrMissingColumn, features.ColTargetReturn)
	}
	risk, ok := train.Column(features.ColRiskClass)
	if !ok {
		return nil, fmt.Errorf("train: %w: %s", features.ErrMissingColumn, features.ColRiskClass)
	}
	labels := make([]int, len(risk))
	for i, v := range risk {
		if math.IsNaN(v) || math.IsNaN(target[i]) {
			return nil, fmt.Errorf("train: %w: unlabeled row %d", features.ErrUndefined, i)
		}
		labels[i] = int(v)
	}

	reg, err := FitRidge(x, target, cfg.RidgeAlpha)
	if err != nil {
		return nil, fmt.Errorf("train regressor: %w", err)
	}
	clf, err := FitLogistic(x, labels, cfg.Logistic)
	if err != nil {
		return nil, fmt.Errorf("train classifier: %w", err)
	}
	pca, err := FitPCA(x, cfg.PCAComponents)
	if err != nil {
		return nil, fmt.Errorf("train pca: %w", err)
	}
	projected, err := pca.TransformMatrix(x)
	if err != nil {
		return nil, fmt.Errorf("train pca: %w", err)
	}
	km, err := FitKMeans(projected, cfg.KMeans)
	if err != nil {
		return nil, fmt.Errorf("train kmeans: %w", err)
	}

	b := &Bundle{
		Regressor:  reg,
		Classifier: clf,
		PCA:        pca,
		KMeans:     km,
		Features:   append([]string(nil), cfg.Features...),
	}
	if th := train.Thresholds; th.Defined() {
		b.Thresholds = &th
	}
	return b, nil
}

// PredictRows runs the regressor and classifier over every row of t.
// Classes are the argmax labels of the classifier.
func PredictRows(b *Bundle, t *features.Table) (returns []float64, classes []int, err error) {
	if err := b.Require(RoleRegressor, RoleClassifier); err != nil {
		return nil, nil, err
	}
	x, err := t.Matrix(b.Features)
	if err != nil {
		return nil, nil, err
	}
	r, _ := x.Dims()
	returns = make([]float64, r)
	classes = make([]int, r)
	labels := b.Classifier.Classes()
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		if returns[i], err = b.Regressor.Predict(row); err != nil {
			return nil, nil, err
		}
		p, err := b.Classifier.PredictProba(row)
		if err != nil {
			return nil, nil, err
		}
		classes[i] = labels[argmax(p)]
	}
	return returns, classes, nil
}

func argmax(p []float64) int {
	best := 0
	for i := range p {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}
