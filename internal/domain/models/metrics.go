package models

// RegressionMetrics mirrors the regression block of the metrics artifact.
type RegressionMetrics struct {
	RMSE float64 `json:"RMSE"`
	MAE  float64 `json:"MAE"`
	R2   float64 `json:"R2"`
}

// ClassificationMetrics uses weighted averages for F1, Precision and Recall.
type ClassificationMetrics struct {
	Accuracy  float64 `json:"Accuracy"`
	F1        float64 `json:"F1"`
	Precision float64 `json:"Precision"`
	Recall    float64 `json:"Recall"`
}

// MetricsReport is written once per training run.
type MetricsReport struct {
	Timestamp      string                `json:"timestamp"`
	Regression     RegressionMetrics     `json:"regression"`
	Classification ClassificationMetrics `json:"classification"`
}

// TrainingResult summarizes one pipeline run.
type TrainingResult struct {
	Version        string             `json:"version"`
	TrainRows      int                `json:"train_rows"`
	TestRows       int                `json:"test_rows"`
	Tickers        []string           `json:"tickers"`
	Metrics        *MetricsReport     `json:"metrics,omitempty"`
	MetricsFile    string             `json:"metrics_file,omitempty"`
	TrainR2        float64            `json:"train_r2"`
	Diagnosis      string             `json:"diagnosis"`
	DriftedColumns []string           `json:"drifted_columns,omitempty"`
	IntegrityOK    bool               `json:"integrity_ok"`
	Thresholds     map[string]float64 `json:"thresholds,omitempty"`
}
