package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotRunning is returned by Enqueue before Start or after Stop.
	ErrNotRunning = errors.New("queue not running")
	// ErrPermanent marks a job failure that a retry cannot fix. Such messages
	// go straight to the dead-letter list.
	ErrPermanent = errors.New("permanent failure")
)

// Permanent wraps err so the queue skips retries for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Publisher enqueues messages and returns their id.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue.
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // retries before the dead-letter list
	RetryDelay time.Duration // delay before a failed message is retried
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParsePayload decodes a message payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var out T
	if len(payload) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, Permanent(fmt.Errorf("unmarshal payload: %w", err))
	}
	return &out, nil
}
