package repository

import (
	"context"
	"fmt"

	"RiskCast/internal/domain/models"
	domrepo "RiskCast/internal/domain/repository"
)

var (
	_ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ domrepo.EventPublisher = NopEventPublisher{}
)

type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher announces model events keyed by version.
type KafkaEventPublisher struct {
	producer keyedPublisher
	topic    string
}

func NewKafkaEventPublisher(producer keyedPublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishModelEvent(ctx context.Context, ev *models.ModelEvent) error {
	if ev == nil || ev.Version == "" {
		return fmt.Errorf("%w: model event without version", models.ErrInvalidInput)
	}
	if ev.Type == "" {
		ev.Type = models.EventModelTrained
	}
	return p.producer.Publish(ctx, p.topic, []byte(ev.Version), ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopEventPublisher is used when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishModelEvent(context.Context, *models.ModelEvent) error { return nil }
func (NopEventPublisher) Close() error                                                { return nil }
