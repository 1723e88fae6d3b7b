package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type.
type Job interface {
	Name() string
	// Type is the message type this job consumes.
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}
