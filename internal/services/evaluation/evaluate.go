package evaluation

import (
	"fmt"
	"math"
	"time"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/services/features"
	"RiskCast/internal/services/ml"
)

// Overfitting diagnoses, from the train and test R² of the regressor.
const (
	DiagnosisSevere       = "SEVERE OVERFITTING"
	DiagnosisMild         = "Mild Overfitting"
	DiagnosisNoSignal     = "Underfitting / No Signal"
	DiagnosisInconclusive = "Inconclusive"
)

// DiagnoseOverfit compares the regressor's R² in and out of sample.
func DiagnoseOverfit(trainR2, testR2 float64) string {
	switch {
	case trainR2 > 0.5 && testR2 < 0:
		return DiagnosisSevere
	case trainR2 > 0.1 && testR2 < 0:
		return DiagnosisMild
	case math.Abs(trainR2) < 0.1 && math.Abs(testR2) < 0.1:
		return DiagnosisNoSignal
	default:
		return DiagnosisInconclusive
	}
}

// Evaluate scores a bundle on a labeled partition.
func Evaluate(b *ml.Bundle, t *features.Table, now time.Time) (*models.MetricsReport, error) {
	yReg, yClf, err := labels(t)
	if err != nil {
		return nil, err
	}
	predReg, predClf, err := ml.PredictRows(b, t)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return &models.MetricsReport{
		Timestamp:      now.UTC().Format(time.RFC3339),
		Regression:     RegressionScores(yReg, predReg),
		Classification: ClassificationScores(yClf, predClf),
	}, nil
}

// RegressorR2 scores only the regressor, used for the in-sample side of the diagnosis.
func RegressorR2(b *ml.Bundle, t *features.Table) (float64, error) {
	if err := b.Require(ml.RoleRegressor); err != nil {
		return 0, err
	}
	yReg, _, err := labels(t)
	if err != nil {
		return 0, err
	}
	x, err := t.Matrix(b.Features)
	if err != nil {
		return 0, err
	}
	pred := make([]float64, len(yReg))
	for i := range pred {
		if pred[i], err = b.Regressor.Predict(x.RawRowView(i)); err != nil {
			return 0, err
		}
	}
	return R2(yReg, pred), nil
}

func labels(t *features.Table) ([]float64, []int, error) {
	if t.Len() == 0 {
		return nil, nil, features.ErrEmptyTable
	}
	target, ok := t.Column(features.ColTargetReturn)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", features.ErrMissingColumn, features.ColTargetReturn)
	}
	risk, ok := t.Column(features.ColRiskClass)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", features.ErrMissingColumn, features.ColRiskClass)
	}
	classes := make([]int, len(risk))
	for i, v := range risk {
		if math.IsNaN(v) || math.IsNaN(target[i]) {
			return nil, nil, fmt.Errorf("%w: unlabeled row %d", features.ErrUndefined, i)
		}
		classes[i] = int(v)
	}
	return target, classes, nil
}
