package models

import "time"

const (
	EventModelTrained = "model.trained"
	// JobTrainModels is the queue message type of a training run.
	JobTrainModels = "train_models"
)

// ModelEvent is published after a bundle version is saved.
type ModelEvent struct {
	Type      string         `json:"type"`
	Version   string         `json:"version"`
	TrainedAt time.Time      `json:"trained_at"`
	TrainRows int            `json:"train_rows"`
	TestRows  int            `json:"test_rows"`
	Metrics   *MetricsReport `json:"metrics,omitempty"`
}

// TrainJobPayload is the queue payload for a training run.
type TrainJobPayload struct {
	Tickers     []string  `json:"tickers,omitempty"`
	UseCache    bool      `json:"use_cache"`
	RequestedAt time.Time `json:"requested_at"`
}
