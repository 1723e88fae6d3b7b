package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"RiskCast/internal/domain/models"
	domrepo "RiskCast/internal/domain/repository"
	"RiskCast/internal/service/metrics"
	xhttp "RiskCast/pkg/http"
	xlogger "RiskCast/pkg/logger"
	"RiskCast/pkg/queue"
	"RiskCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// Predictor is the prediction surface served over HTTP.
type Predictor interface {
	PredictRisk(ctx context.Context, ticker string) (*models.RiskPrediction, error)
	PredictReturn(ctx context.Context, ticker string) (*models.ReturnPrediction, error)
	RecommendSimilar(ctx context.Context, ticker, riskPreference string) (*models.Recommendations, error)
	Universe() []string
}

// ModelLoader exposes the serving bundle state.
type ModelLoader interface {
	Loaded() (string, bool)
	Reload(ctx context.Context) (string, error)
}

// RiskEchoHandler serves predictions, metrics and training triggers.
type RiskEchoHandler struct {
	logger    *xlogger.Logger
	predictor Predictor
	loader    ModelLoader
	reports   domrepo.MetricsStore
	jobs      queue.Publisher
	now       func() time.Time
}

// NewRiskEchoHandler builds the handler. jobs may be nil when the queue is disabled.
func NewRiskEchoHandler(
	logger *xlogger.Logger,
	predictor Predictor,
	loader ModelLoader,
	reports domrepo.MetricsStore,
	jobs queue.Publisher,
) *RiskEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RiskEchoHandler{
		logger:    logger,
		predictor: predictor,
		loader:    loader,
		reports:   reports,
		jobs:      jobs,
		now:       time.Now,
	}
}

func (h *RiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	g := e.Group("/api")
	g.POST("/predict_risk", h.PredictRisk)
	g.POST("/predict_return", h.PredictReturn)
	g.GET("/recommend_similar", h.RecommendSimilar)
	g.GET("/metrics", h.Metrics)
	g.POST("/train", h.Train)
	g.POST("/models/reload", h.Reload)
}

type rootResponse struct {
	Project          string            `json:"project"`
	Description      string            `json:"description"`
	Endpoints        map[string]string `json:"endpoints"`
	ModelStatus      string            `json:"model_status"`
	ModelVersion     string            `json:"model_version,omitempty"`
	SupportedTickers []string          `json:"supported_tickers"`
}

func (h *RiskEchoHandler) Root(c echo.Context) error {
	status := "Not Loaded (Run training first)"
	version, ok := h.loader.Loaded()
	if ok {
		status = "Loaded"
	}
	return xhttp.SuccessResponse(c, rootResponse{
		Project:     "RiskCast",
		Description: "Stock risk classification, next-day return forecasting and similar-stock recommendation",
		Endpoints: map[string]string{
			"predict_risk":      "POST /api/predict_risk",
			"predict_return":    "POST /api/predict_return",
			"recommend_similar": "GET /api/recommend_similar?ticker=&risk_preference=",
			"metrics":           "GET /api/metrics",
			"train":             "POST /api/train",
			"reload":            "POST /api/models/reload",
		},
		ModelStatus:      status,
		ModelVersion:     version,
		SupportedTickers: h.predictor.Universe(),
	})
}

func (h *RiskEchoHandler) PredictRisk(c echo.Context) error {
	start := time.Now()
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("predict_risk", start, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.predictor.PredictRisk(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.fail(c, "predict_risk", start, err)
	}
	metrics.Observe("predict_risk", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) PredictReturn(c echo.Context) error {
	start := time.Now()
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("predict_return", start, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.predictor.PredictReturn(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.fail(c, "predict_return", start, err)
	}
	metrics.Observe("predict_return", start, "")
	return xhttp.SuccessResponse(c, res)
}

type recommendResponse struct {
	InputTicker     string                  `json:"input_ticker"`
	InputClusterID  int                     `json:"input_cluster_id"`
	RiskPreference  string                  `json:"risk_preference,omitempty"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Skipped         []models.Skipped        `json:"skipped"`
}

func (h *RiskEchoHandler) RecommendSimilar(c echo.Context) error {
	start := time.Now()
	req := &models.RecommendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("recommend_similar", start, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.predictor.RecommendSimilar(c.Request().Context(), req.Ticker, req.RiskPreference)
	if err != nil {
		return h.fail(c, "recommend_similar", start, err)
	}
	metrics.Observe("recommend_similar", start, "")
	return xhttp.SuccessResponse(c, recommendResponse{
		InputTicker:     res.InputTicker,
		InputClusterID:  res.InputClusterID,
		RiskPreference:  res.RiskPreference,
		Recommendations: res.Matches(),
		Skipped:         res.Skips(""),
	})
}

func (h *RiskEchoHandler) Metrics(c echo.Context) error {
	start := time.Now()
	report, err := h.reports.Latest(c.Request().Context())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.Observe("metrics", start, "not_found")
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("No metrics found. Train the model first."))
		}
		return h.fail(c, "metrics", start, err)
	}
	metrics.Observe("metrics", start, "")
	return xhttp.SuccessResponse(c, report)
}

type trainResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (h *RiskEchoHandler) Train(c echo.Context) error {
	start := time.Now()
	if h.jobs == nil {
		metrics.Observe("train", start, "unavailable")
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue is disabled; run `riskcast train` instead"))
	}
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("train", start, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}
	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	id, err := h.jobs.Enqueue(c.Request().Context(), models.JobTrainModels, models.TrainJobPayload{
		Tickers:     util.NormalizeTickers(req.Tickers),
		UseCache:    useCache,
		RequestedAt: h.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, queue.ErrNotRunning) {
			metrics.Observe("train", start, "unavailable")
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue is not running").WithError(err))
		}
		return h.fail(c, "train", start, err)
	}
	h.logger.Info("training job enqueued", xlogger.String("job_id", id))
	metrics.Observe("train", start, "")
	return xhttp.AcceptedResponse(c, trainResponse{JobID: id, Status: "queued"})
}

type reloadResponse struct {
	ModelVersion string `json:"model_version"`
}

func (h *RiskEchoHandler) Reload(c echo.Context) error {
	start := time.Now()
	version, err := h.loader.Reload(c.Request().Context())
	if err != nil {
		return h.fail(c, "reload", start, err)
	}
	metrics.Observe("reload", start, "")
	return xhttp.SuccessResponse(c, reloadResponse{ModelVersion: version})
}

func (h *RiskEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr, kind := toAppError(err)
	metrics.Observe(endpoint, start, kind)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	} else {
		h.logger.Debug("request rejected", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain errors to HTTP errors. ErrModelsNotLoaded wraps
// ErrNotFound, so it is checked first.
func toAppError(err error) (*xhttp.AppError, string) {
	switch {
	case errors.Is(err, models.ErrModelsNotLoaded):
		return xhttp.ServiceUnavailableError("Models not loaded. Run training first.").WithError(err), "not_loaded"
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.BadRequestError(err.Error()).WithError(err), "invalid"
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err), "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("request timed out").WithError(err), "timeout"
	default:
		return xhttp.InternalError("Something went wrong").WithError(err), "internal"
	}
}
