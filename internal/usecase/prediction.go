package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"RiskCast/internal/domain/models"
	drepo "RiskCast/internal/domain/repository"
	"RiskCast/internal/services/features"
	"RiskCast/internal/services/ml"
	"RiskCast/pkg/cache"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/util"

	"golang.org/x/sync/errgroup"
)

// PredictionCachePrefix namespaces cached predictions so a model reload can drop them.
const PredictionCachePrefix = "pred"

// DefaultRiskLevels names classifier classes 0, 1 and 2.
var DefaultRiskLevels = []string{"Low", "Medium", "High"}

// PredictionConfig holds serving parameters.
type PredictionConfig struct {
	Universe   []string
	RiskLevels []string
	CacheTTL   time.Duration
	Workers    int
}

// PredictionService turns the latest feature row of a ticker into model outputs.
type PredictionService struct {
	source  drepo.BarSource
	loader  *BundleLoader
	cache   cache.Service
	metrics drepo.Metrics
	cfg     PredictionConfig
	l       *applogger.Logger
}

func NewPredictionService(
	source drepo.BarSource,
	loader *BundleLoader,
	c cache.Service,
	metrics drepo.Metrics,
	cfg PredictionConfig,
	l *applogger.Logger,
) *PredictionService {
	if len(cfg.RiskLevels) != len(DefaultRiskLevels) {
		cfg.RiskLevels = DefaultRiskLevels
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	cfg.Universe = util.NormalizeTickers(cfg.Universe)
	if l == nil {
		l = applogger.Nop()
	}
	return &PredictionService{source: source, loader: loader, cache: c, metrics: metrics, cfg: cfg, l: l}
}

// Universe returns the configured candidate tickers.
func (s *PredictionService) Universe() []string {
	return append([]string(nil), s.cfg.Universe...)
}

// LatestFeatures derives the most recent feature row of ticker.
// An undefined return_lag1 marks the row as insufficient history.
func (s *PredictionService) LatestFeatures(ctx context.Context, ticker string) (features.FeatureRow, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return features.FeatureRow{}, fmt.Errorf("%w: ticker is required", models.ErrInvalidInput)
	}
	bars, err := s.source.Fetch(ctx, []string{ticker}, true)
	if err != nil {
		return features.FeatureRow{}, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return features.FeatureRow{}, fmt.Errorf("%w: no data for ticker %s", models.ErrNotFound, ticker)
	}
	row, ok := features.GenerateFeatures(bars).Last()
	if !ok || math.IsNaN(row.Get(features.ColReturnLag1)) {
		return features.FeatureRow{}, fmt.Errorf("%w: %s", models.ErrInsufficientHistory, ticker)
	}
	return row, nil
}

// PredictRisk classifies the ticker's latest row. Results are cached per model version.
func (s *PredictionService) PredictRisk(ctx context.Context, ticker string) (res *models.RiskPrediction, err error) {
	defer s.observe("risk", time.Now(), &err)

	bundle, version, err := s.bundle(ctx, ml.RoleClassifier)
	if err != nil {
		return nil, err
	}
	ticker = util.NormalizeTicker(ticker)
	key := cache.GenerateKeyWithParams(PredictionCachePrefix+":risk", version, ticker)
	if s.cache != nil {
		var cached models.RiskPrediction
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	row, err := s.LatestFeatures(ctx, ticker)
	if err != nil {
		return nil, err
	}
	res, err = s.classify(bundle, row)
	if err != nil {
		return nil, err
	}
	res.Ticker = ticker
	res.ModelVersion = version

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, res, s.cfg.CacheTTL); err != nil {
			s.l.Warn("prediction cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return res, nil
}

// PredictReturn forecasts the next-day return of ticker.
func (s *PredictionService) PredictReturn(ctx context.Context, ticker string) (res *models.ReturnPrediction, err error) {
	defer s.observe("return", time.Now(), &err)

	bundle, version, err := s.bundle(ctx, ml.RoleRegressor)
	if err != nil {
		return nil, err
	}
	row, err := s.LatestFeatures(ctx, ticker)
	if err != nil {
		return nil, err
	}
	x, err := inputVector(row, bundle.Features)
	if err != nil {
		return nil, err
	}
	ret, err := bundle.Regressor.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("regressor predict: %w", err)
	}
	return &models.ReturnPrediction{
		Ticker:                 row.Ticker,
		PredictedNextDayReturn: ret,
		ModelVersion:           version,
	}, nil
}

// RecommendSimilar lists universe tickers that share the input's cluster, optionally
// restricted to a risk class. Candidate failures are reported as skips.
func (s *PredictionService) RecommendSimilar(ctx context.Context, ticker, riskPreference string) (res *models.Recommendations, err error) {
	defer s.observe("recommend", time.Now(), &err)

	bundle, _, err := s.bundle(ctx, ml.RolePCA, ml.RoleKMeans, ml.RoleClassifier)
	if err != nil {
		return nil, err
	}
	pref := strings.TrimSpace(riskPreference)
	if pref != "" && s.levelIndex(pref) < 0 {
		return nil, fmt.Errorf("%w: unknown risk preference %q", models.ErrInvalidInput, riskPreference)
	}

	row, err := s.LatestFeatures(ctx, ticker)
	if err != nil {
		return nil, err
	}
	cluster, err := clusterOf(bundle, row)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(s.cfg.Universe))
	for _, t := range s.cfg.Universe {
		if t != row.Ticker {
			candidates = append(candidates, t)
		}
	}
	results := make([]models.CandidateResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			results[i] = s.evaluateCandidate(gctx, bundle, cand, cluster, pref)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.Recommendations{
		InputTicker:    row.Ticker,
		InputClusterID: cluster,
		RiskPreference: pref,
		Results:        results,
	}, nil
}

func (s *PredictionService) evaluateCandidate(ctx context.Context, bundle *ml.Bundle, ticker string, cluster int, pref string) models.CandidateResult {
	skip := func(reason, detail string) models.CandidateResult {
		return models.CandidateResult{
			Ticker:  ticker,
			Skipped: &models.Skipped{Ticker: ticker, Reason: reason, Detail: detail},
		}
	}

	row, err := s.LatestFeatures(ctx, ticker)
	if err != nil {
		s.l.Debug("candidate skipped", applogger.String("ticker", ticker), applogger.Error(err))
		return skip(models.SkipError, err.Error())
	}
	c, err := clusterOf(bundle, row)
	if err != nil {
		return skip(models.SkipError, err.Error())
	}
	if c != cluster {
		return skip(models.SkipClusterMismatch, "")
	}
	risk, err := s.classify(bundle, row)
	if err != nil {
		return skip(models.SkipError, err.Error())
	}
	if pref != "" && !strings.EqualFold(risk.RiskClass, pref) {
		return skip(models.SkipRiskMismatch, risk.RiskClass)
	}
	return models.CandidateResult{
		Ticker:    ticker,
		Candidate: &models.Recommendation{Ticker: ticker, RiskClass: risk.RiskClass, ClusterID: c},
	}
}

func (s *PredictionService) classify(bundle *ml.Bundle, row features.FeatureRow) (*models.RiskPrediction, error) {
	x, err := inputVector(row, bundle.Features)
	if err != nil {
		return nil, err
	}
	proba, err := bundle.Classifier.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("classifier predict: %w", err)
	}
	classes := bundle.Classifier.Classes()
	if len(classes) != len(proba) || len(proba) == 0 {
		return nil, fmt.Errorf("classifier returned %d probabilities for %d classes", len(proba), len(classes))
	}

	best := 0
	probs := make(map[string]float64, len(proba))
	for i, p := range proba {
		probs[s.label(classes[i])] = p
		if p > proba[best] {
			best = i
		}
	}
	class := s.label(classes[best])

	vol := row.Get(features.ColVolatility20d)
	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		vol = 0
	}
	return &models.RiskPrediction{
		Ticker:          row.Ticker,
		RiskClass:       class,
		Probabilities:   probs,
		Volatility:      vol,
		ConfidenceScore: proba[best],
		Recommendation:  s.action(classes[best]),
	}, nil
}

func (s *PredictionService) label(class int) string {
	if class >= 0 && class < len(s.cfg.RiskLevels) {
		return s.cfg.RiskLevels[class]
	}
	return fmt.Sprintf("class_%d", class)
}

func (s *PredictionService) levelIndex(name string) int {
	for i, l := range s.cfg.RiskLevels {
		if strings.EqualFold(l, name) {
			return i
		}
	}
	return -1
}

// action maps the lowest risk class to BUY and the highest to SELL.
func (s *PredictionService) action(class int) string {
	switch class {
	case 0:
		return models.ActionBuy
	case len(s.cfg.RiskLevels) - 1:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

func (s *PredictionService) bundle(ctx context.Context, roles ...string) (*ml.Bundle, string, error) {
	bundle, version, err := s.loader.Get(ctx)
	if err != nil {
		return nil, "", err
	}
	if err := bundle.Require(roles...); err != nil {
		return nil, "", err
	}
	return bundle, version, nil
}

func (s *PredictionService) observe(kind string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if *errp != nil {
		outcome = errorKind(*errp)
		s.metrics.RecordError(kind + "_" + outcome)
	}
	s.metrics.RecordPrediction(kind, outcome)
	s.metrics.RecordLatency("predict_"+kind, time.Since(start).Seconds())
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrModelsNotLoaded):
		return "not_loaded"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func inputVector(row features.FeatureRow, names []string) ([]float64, error) {
	x, err := row.Vector(names)
	if err != nil {
		if features.IsUndefined(err) {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrInsufficientHistory, row.Ticker, err)
		}
		return nil, err
	}
	return x, nil
}

func clusterOf(bundle *ml.Bundle, row features.FeatureRow) (int, error) {
	x, err := inputVector(row, bundle.Features)
	if err != nil {
		return 0, err
	}
	z, err := bundle.PCA.Transform(x)
	if err != nil {
		return 0, fmt.Errorf("pca transform: %w", err)
	}
	c, err := bundle.KMeans.Predict(z)
	if err != nil {
		return 0, fmt.Errorf("kmeans predict: %w", err)
	}
	return c, nil
}
