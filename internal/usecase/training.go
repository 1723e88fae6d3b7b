package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RiskCast/internal/domain/models"
	drepo "RiskCast/internal/domain/repository"
	"RiskCast/internal/services/evaluation"
	"RiskCast/internal/services/features"
	"RiskCast/internal/services/ml"
	"RiskCast/internal/services/quality"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/util"
)

// ErrNoBars is returned when ingestion yields nothing after all retries.
var ErrNoBars = fmt.Errorf("%w: no bars ingested", models.ErrNotFound)

// BundleSaver persists a trained bundle and returns its version.
type BundleSaver interface {
	Save(ctx context.Context, b *ml.Bundle) (string, error)
}

// TrainingConfig parameterizes one pipeline run.
type TrainingConfig struct {
	Tickers       []string
	TestSize      features.SplitSize
	AlignedCutoff bool
	Model         ml.TrainConfig
	Retries       int
	RetryDelay    time.Duration
	MinRows       int
	DriftZ        float64
}

// TrainRequest overrides the configured tickers for a single run.
type TrainRequest struct {
	Tickers  []string
	UseCache bool
}

// TrainingService runs ingest, validation, features, split, fit, evaluation, save and publish.
type TrainingService struct {
	source    drepo.BarSource
	registry  BundleSaver
	reports   drepo.MetricsStore
	publisher drepo.EventPublisher
	metrics   drepo.Metrics
	cfg       TrainingConfig
	l         *applogger.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewTrainingService(
	source drepo.BarSource,
	registry BundleSaver,
	reports drepo.MetricsStore,
	publisher drepo.EventPublisher,
	metrics drepo.Metrics,
	cfg TrainingConfig,
	l *applogger.Logger,
) *TrainingService {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	if len(cfg.Model.Features) == 0 {
		cfg.Model.Features = append([]string(nil), features.DefaultModelFeatures...)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &TrainingService{
		source:    source,
		registry:  registry,
		reports:   reports,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		l:         l,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Run executes the pipeline once. Drift, integrity and overfitting findings are
// logged and reported but never abort the run.
func (s *TrainingService) Run(ctx context.Context, req TrainRequest) (res *models.TrainingResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordLatency("training", time.Since(start).Seconds())
		if err != nil {
			s.metrics.RecordTrainingRun("failure", 0, 0)
			s.metrics.RecordError("training")
			s.l.Error("training failed", applogger.Error(err))
			return
		}
		s.metrics.RecordTrainingRun("success", res.TrainRows, res.TestRows)
	}()

	tickers := util.NormalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		tickers = util.NormalizeTickers(s.cfg.Tickers)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers to train on", models.ErrInvalidInput)
	}

	bars, err := s.ingest(ctx, tickers, req.UseCache)
	if err != nil {
		return nil, err
	}

	integrity := quality.CheckIntegrity(bars, s.cfg.MinRows)
	if !integrity.Passed {
		s.l.Warn("data integrity check failed, continuing",
			applogger.Strings("short_tickers", integrity.EmptyTickerData),
			applogger.Any("missing_values", integrity.MissingValues))
	}

	table := features.GenerateFeatures(bars)
	var opts []features.SplitOption
	if s.cfg.AlignedCutoff {
		opts = append(opts, features.WithDateAlignedCutoff())
	}
	train, test, err := features.Split(table, s.cfg.TestSize, opts...)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	s.l.Info("dataset split",
		applogger.Int("train_rows", train.Len()),
		applogger.Int("test_rows", test.Len()),
		applogger.String("size", s.cfg.TestSize.String()))

	bundle, err := ml.Train(train, s.cfg.Model)
	if err != nil {
		return nil, err
	}

	res = &models.TrainingResult{
		TrainRows:   train.Len(),
		TestRows:    test.Len(),
		Tickers:     tickers,
		IntegrityOK: integrity.Passed,
	}
	if bundle.Thresholds != nil {
		res.Thresholds = map[string]float64{"low": bundle.Thresholds.Low, "high": bundle.Thresholds.High}
	}

	if test.Len() > 0 {
		if err := s.evaluate(ctx, bundle, train, test, res); err != nil {
			return nil, err
		}
	} else {
		s.l.Warn("test partition empty, skipping evaluation")
	}

	version, err := s.registry.Save(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	res.Version = version

	ev := &models.ModelEvent{
		Type:      models.EventModelTrained,
		Version:   version,
		TrainedAt: s.now().UTC(),
		TrainRows: res.TrainRows,
		TestRows:  res.TestRows,
		Metrics:   res.Metrics,
	}
	if err := s.publisher.PublishModelEvent(ctx, ev); err != nil {
		s.l.Warn("model event publish failed", applogger.String("version", version), applogger.Error(err))
	}

	s.l.Info("training complete",
		applogger.String("version", version),
		applogger.String("diagnosis", res.Diagnosis),
		applogger.Duration("elapsed_ms", time.Since(start)))
	return res, nil
}

func (s *TrainingService) evaluate(ctx context.Context, b *ml.Bundle, train, test *features.Table, res *models.TrainingResult) error {
	report, err := evaluation.Evaluate(b, test, s.now())
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	res.Metrics = report
	if s.reports != nil {
		file, err := s.reports.Save(ctx, report)
		if err != nil {
			return fmt.Errorf("save metrics: %w", err)
		}
		res.MetricsFile = file
	}

	trainR2, err := evaluation.RegressorR2(b, train)
	if err != nil {
		return fmt.Errorf("train r2: %w", err)
	}
	res.TrainR2 = trainR2
	res.Diagnosis = evaluation.DiagnoseOverfit(trainR2, report.Regression.R2)
	s.l.Info("model evaluated",
		applogger.Float64("train_r2", trainR2),
		applogger.Float64("test_r2", report.Regression.R2),
		applogger.Float64("accuracy", report.Classification.Accuracy),
		applogger.String("diagnosis", res.Diagnosis))

	drift := quality.CheckDrift(train, test, b.Features, s.cfg.DriftZ)
	if cols := drift.Drifted(); len(cols) > 0 {
		res.DriftedColumns = cols
		s.l.Warn("feature drift detected", applogger.Strings("features", cols))
	}
	return nil
}

// ingest fetches bars, retrying on error or an empty result.
func (s *TrainingService) ingest(ctx context.Context, tickers []string, useCache bool) ([]models.Bar, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		bars, err := s.source.Fetch(ctx, tickers, useCache)
		switch {
		case err == nil && len(bars) > 0:
			s.l.Info("bars ingested", applogger.Int("rows", len(bars)), applogger.Int("attempt", attempt))
			return bars, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case err == nil:
			lastErr = ErrNoBars
		default:
			lastErr = err
		}
		s.l.Warn("ingest attempt failed",
			applogger.Int("attempt", attempt),
			applogger.Int("max_attempts", s.cfg.Retries),
			applogger.Error(lastErr))
		if attempt < s.cfg.Retries {
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	if errors.Is(lastErr, ErrNoBars) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("ingest: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
