package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotRunning is returned by Enqueue before Start or after Stop.
var ErrNotRunning = errors.New("queue not running")

// Publisher enqueues messages for asynchronous processing.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue.
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // retries after the first attempt
	RetryDelay time.Duration // delay before a failed message is retried

	// Retryable decides whether a failed message is retried or goes straight
	// to the dead letter list. Nil retries every error.
	Retryable func(error) bool
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}

// Decode unmarshals a payload into T.
func Decode[T any](payload json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetry
	outcomeDead
	outcomeRequeue
)

// decide classifies a handled message.
func (c *QueueConfig) decide(msg Message, err error) outcome {
	switch {
	case err == nil:
		return outcomeDone
	case errors.Is(err, context.Canceled):
		return outcomeRequeue
	case c.Retryable != nil && !c.Retryable(err):
		return outcomeDead
	case msg.Attempts < c.RetryLimit:
		return outcomeRetry
	default:
		return outcomeDead
	}
}
