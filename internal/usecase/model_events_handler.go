package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"RiskCast/internal/domain/models"
	"RiskCast/pkg/cache"
	applogger "RiskCast/pkg/logger"
)

// ModelEventsHandler reloads the serving bundle when a new version is announced.
type ModelEventsHandler struct {
	topic  string
	loader *BundleLoader
	cache  cache.Service
	l      *applogger.Logger
}

func NewModelEventsHandler(topic string, loader *BundleLoader, c cache.Service, l *applogger.Logger) *ModelEventsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &ModelEventsHandler{topic: topic, loader: loader, cache: c, l: l}
}

func (h *ModelEventsHandler) Topic() string { return h.topic }

func (h *ModelEventsHandler) Handle(ctx context.Context, value []byte) error {
	var ev models.ModelEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		// Malformed events cannot succeed on retry.
		h.l.Warn("model event: malformed payload dropped", applogger.Error(err))
		return nil
	}
	if ev.Type != models.EventModelTrained {
		return nil
	}
	if current, ok := h.loader.Loaded(); ok && current >= ev.Version {
		h.l.Debug("model event: already serving", applogger.String("version", current))
		return nil
	}

	if h.cache != nil {
		if err := h.cache.DeleteByPattern(ctx, cache.BuildPattern(PredictionCachePrefix+":")); err != nil {
			h.l.Warn("model event: prediction cache purge failed", applogger.Error(err))
		}
	}
	version, err := h.loader.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reload bundle for %s: %w", ev.Version, err)
	}
	h.l.Info("model event: bundle reloaded",
		applogger.String("announced", ev.Version),
		applogger.String("serving", version))
	return nil
}
