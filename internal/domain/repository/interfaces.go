package repository

import (
	"context"

	"RiskCast/internal/domain/models"
)

// ArtifactStore is a byte-level store keyed by (namespace, name).
type ArtifactStore interface {
	// Create claims a new namespace. It fails with an error wrapping fs.ErrExist if taken.
	Create(ctx context.Context, namespace string) error
	// Namespaces lists namespaces. It returns models.ErrNotFound if the root does not exist.
	Namespaces(ctx context.Context) ([]string, error)
	Put(ctx context.Context, namespace, name string, data []byte) error
	// Get returns models.ErrNotFound for a missing artifact.
	Get(ctx context.Context, namespace, name string) ([]byte, error)
	// Delete removes a namespace and everything in it. Deleting a missing namespace is not an error.
	Delete(ctx context.Context, namespace string) error
}

// MetricsStore persists evaluation reports.
type MetricsStore interface {
	Save(ctx context.Context, report *models.MetricsReport) (string, error)
	Latest(ctx context.Context) (*models.MetricsReport, error)
}

// EventPublisher announces model lifecycle events.
type EventPublisher interface {
	PublishModelEvent(ctx context.Context, ev *models.ModelEvent) error
	Close() error
}

// Metrics records operational counters and latencies.
type Metrics interface {
	RecordPrediction(kind, outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordTrainingRun(outcome string, trainRows, testRows int)
	RecordModelVersion(version string)
}
