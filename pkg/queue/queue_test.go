package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"StockSim/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJob struct {
	typ   string
	err   error
	panic bool
	got   []json.RawMessage
}

func (j *recordingJob) Type() string { return j.typ }

func (j *recordingJob) Handle(_ context.Context, payload json.RawMessage) error {
	if j.panic {
		panic("boom")
	}
	j.got = append(j.got, payload)
	return j.err
}

// unreachable points at a closed port so nothing in these tests needs Redis.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestQueueConfig_Decide(t *testing.T) {
	errFatal := errors.New("fatal")
	cfg := &QueueConfig{
		RetryLimit: 2,
		Retryable:  func(err error) bool { return !errors.Is(err, errFatal) },
	}

	tests := []struct {
		name     string
		attempts int
		err      error
		want     outcome
	}{
		{"success", 0, nil, outcomeDone},
		{"first failure retried", 0, errors.New("x"), outcomeRetry},
		{"last retry", 1, errors.New("x"), outcomeRetry},
		{"retries exhausted", 2, errors.New("x"), outcomeDead},
		{"not retryable", 0, errFatal, outcomeDead},
		{"canceled requeued", 2, context.Canceled, outcomeRequeue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.decide(Message{Attempts: tt.attempts}, tt.err))
		})
	}

	assert.Equal(t, outcomeRetry, (&QueueConfig{RetryLimit: 1}).decide(Message{}, errFatal), "nil Retryable retries everything")
}

func TestDecode(t *testing.T) {
	type payload struct {
		Symbol string `json:"symbol"`
		Runs   int    `json:"runs"`
	}
	got, err := Decode[payload](json.RawMessage(`{"symbol":"SPX","runs":10}`))
	require.NoError(t, err)
	assert.Equal(t, payload{Symbol: "SPX", Runs: 10}, got)

	_, err = Decode[payload](json.RawMessage(`{"runs":"ten"}`))
	assert.Error(t, err)
}

func TestNewRedisQueue_Defaults(t *testing.T) {
	rq := NewRedisQueue(nil, nil, unreachable())
	assert.Equal(t, 1, rq.config.Workers)
	assert.Equal(t, 10*time.Second, rq.config.RetryDelay)
	assert.Equal(t, "stocksim:jobs:messages", rq.queueKey())
	assert.Equal(t, "stocksim:jobs:retry", rq.retryKey())
	assert.Equal(t, "stocksim:jobs:dlq", rq.deadLetterKey())

	rq = NewRedisQueue(logger.Nop(), &QueueConfig{Workers: 4}, unreachable(), WithKeyPrefix("sims"))
	assert.Equal(t, 4, rq.config.Workers)
	assert.Equal(t, "sims:messages", rq.queueKey())
}

func TestRedisQueue_RegisterJob(t *testing.T) {
	rq := NewRedisQueue(logger.Nop(), &QueueConfig{}, unreachable())
	require.NoError(t, rq.RegisterJob(&recordingJob{typ: "simulation"}))
	assert.Error(t, rq.RegisterJob(&recordingJob{typ: "simulation"}))
}

func TestRedisQueue_EnqueueNotRunning(t *testing.T) {
	rq := NewRedisQueue(logger.Nop(), &QueueConfig{}, unreachable())
	require.NoError(t, rq.RegisterJob(&recordingJob{typ: "simulation"}))

	_, err := rq.Enqueue(context.Background(), "simulation", map[string]int{"runs": 1})
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestRedisQueue_StartFailsWithoutRedis(t *testing.T) {
	rq := NewRedisQueue(logger.Nop(), &QueueConfig{}, unreachable())
	err := rq.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")

	assert.NoError(t, rq.Stop(context.Background()), "stop before start is a no-op")
}

func TestRedisQueue_ProcessMessage(t *testing.T) {
	rq := NewRedisQueue(logger.Nop(), &QueueConfig{RetryLimit: 1}, unreachable())
	rq.ctx = context.Background()

	job := &recordingJob{typ: "simulation"}
	require.NoError(t, rq.RegisterJob(job))

	rq.processMessage(Message{ID: "1", Type: "simulation", Payload: json.RawMessage(`{"a":1}`)})
	require.Len(t, job.got, 1)
	assert.JSONEq(t, `{"a":1}`, string(job.got[0]))

	// a panicking job is recovered; the retry write fails against the closed port and is only logged
	assert.NotPanics(t, func() {
		job.panic = true
		rq.processMessage(Message{ID: "2", Type: "simulation"})
	})
}
