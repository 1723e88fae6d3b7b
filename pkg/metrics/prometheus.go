package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	trainingRuns *prometheus.CounterVec
	trainRows    prometheus.Gauge
	testRows     prometheus.Gauge
	modelVersion *prometheus.GaugeVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskcast_predictions_total",
				Help: "Total number of predictions served",
			},
			[]string{"kind", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		trainingRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskcast_training_runs_total",
				Help: "Training pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		trainRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskcast_training_train_rows",
			Help: "Rows in the train split of the last successful run",
		}),
		testRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskcast_training_test_rows",
			Help: "Rows in the test split of the last successful run",
		}),
		modelVersion: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskcast_model_info",
				Help: "Currently loaded model version (value is always 1)",
			},
			[]string{"version"},
		),
	}
}

// RecordPrediction counts a prediction of kind (risk, return, recommend) by outcome.
func (r *Recorder) RecordPrediction(kind, outcome string) {
	r.predictions.WithLabelValues(kind, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTrainingRun counts a run; row gauges only move on success.
func (r *Recorder) RecordTrainingRun(outcome string, trainRows, testRows int) {
	r.trainingRuns.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		r.trainRows.Set(float64(trainRows))
		r.testRows.Set(float64(testRows))
	}
}

// RecordModelVersion marks version as the only loaded one.
func (r *Recorder) RecordModelVersion(version string) {
	r.modelVersion.Reset()
	r.modelVersion.WithLabelValues(version).Set(1)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordPrediction(string, string)    {}
func (Nop) RecordError(string)                 {}
func (Nop) RecordLatency(string, float64)      {}
func (Nop) RecordTrainingRun(string, int, int) {}
func (Nop) RecordModelVersion(string)          {}
