package cmd

import (
	"bytes"
	"testing"

	"RiskCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestRenderResult(t *testing.T) {
	var buf bytes.Buffer
	renderResult(&buf, &models.TrainingResult{
		Version:   "version_20240105_120000",
		TrainRows: 900,
		TestRows:  100,
		Tickers:   []string{"AAPL", "MSFT"},
		Metrics: &models.MetricsReport{
			Regression:     models.RegressionMetrics{RMSE: 0.02, MAE: 0.015, R2: -0.01},
			Classification: models.ClassificationMetrics{Accuracy: 0.61},
		},
		Diagnosis:      "Underfitting / No Signal",
		DriftedColumns: []string{"rsi_14"},
	})

	out := buf.String()
	assert.Contains(t, out, "version_20240105_120000")
	assert.Contains(t, out, "AAPL,MSFT")
	assert.Contains(t, out, "0.6100")
	assert.Contains(t, out, "Underfitting / No Signal")
	assert.Contains(t, out, "rsi_14")
	assert.Contains(t, out, "failed (see logs)")
}
