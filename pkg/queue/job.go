package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type.
type Job interface {
	// Type returns the message type the job consumes.
	Type() string

	// Handle processes the JSON payload of one message.
	Handle(ctx context.Context, payload json.RawMessage) error
}
