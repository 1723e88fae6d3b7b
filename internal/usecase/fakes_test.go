package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/services/ml"
)

// barSource serves canned bars per ticker and counts calls.
type barSource struct {
	bars  map[string][]models.Bar
	err   error
	calls atomic.Int32
}

func (s *barSource) Fetch(_ context.Context, tickers []string, _ bool) ([]models.Bar, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Bar
	for _, t := range tickers {
		out = append(out, s.bars[t]...)
	}
	return out, nil
}

// wavyBars returns n daily bars oscillating around base.
func wavyBars(ticker string, base float64, n int) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		c := base * (1 + 0.01*math.Sin(float64(i)))
		out[i] = models.Bar{Ticker: ticker, Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out
}

type bundleSource struct {
	bundle  *ml.Bundle
	version string
	err     error
	calls   atomic.Int32
}

func (s *bundleSource) LoadLatest(context.Context) (*ml.Bundle, string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, "", s.err
	}
	return s.bundle, s.version, nil
}

// priceClassifier predicts Low below cut and High otherwise, reading the first input.
type priceClassifier struct{ cut float64 }

func (c priceClassifier) Classes() []int { return []int{0, 1, 2} }
func (c priceClassifier) PredictProba(x []float64) ([]float64, error) {
	if x[0] < c.cut {
		return []float64{0.7, 0.2, 0.1}, nil
	}
	return []float64{0.1, 0.2, 0.7}, nil
}

type firstInputRegressor struct{}

func (firstInputRegressor) Predict(x []float64) (float64, error) { return x[0] / 10000, nil }

type identityProjector struct{}

func (identityProjector) Transform(x []float64) ([]float64, error) { return x, nil }

// priceClusterer puts the first input below cut in cluster 0.
type priceClusterer struct{ cut float64 }

func (c priceClusterer) Predict(x []float64) (int, error) {
	if x[0] < c.cut {
		return 0, nil
	}
	return 1, nil
}

type failingClassifier struct{}

func (failingClassifier) Classes() []int { return []int{0, 1, 2} }
func (failingClassifier) PredictProba([]float64) ([]float64, error) {
	return nil, errors.New("boom")
}

func fakeBundle() *ml.Bundle {
	return &ml.Bundle{
		Regressor:  firstInputRegressor{},
		Classifier: priceClassifier{cut: 115},
		PCA:        identityProjector{},
		KMeans:     priceClusterer{cut: 300},
		Features:   []string{"close", "return_lag1", "volatility_20d"},
	}
}

type recordingMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	runs        map[string]int
	versions    []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{predictions: map[string]int{}, runs: map[string]int{}}
}

func (m *recordingMetrics) RecordPrediction(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[kind+"/"+outcome]++
}
func (m *recordingMetrics) RecordError(string)            {}
func (m *recordingMetrics) RecordLatency(string, float64) {}
func (m *recordingMetrics) RecordTrainingRun(outcome string, _, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[outcome]++
}
func (m *recordingMetrics) RecordModelVersion(v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append(m.versions, v)
}

type recordingPublisher struct {
	events []*models.ModelEvent
	err    error
}

func (p *recordingPublisher) PublishModelEvent(_ context.Context, ev *models.ModelEvent) error {
	p.events = append(p.events, ev)
	return p.err
}
func (p *recordingPublisher) Close() error { return nil }
