package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"StockSim/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// promoteScript moves a due retry back onto the work list only if this
// caller removed it, so several instances never duplicate a message.
var promoteScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('LPUSH', KEYS[2], ARGV[1])
	return 1
end
return 0
`)

// RedisQueue is a Redis list backed job queue with delayed retries and a dead letter list.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
	pollEvery time.Duration
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		keyPrefix: "stocksim:jobs",
		pollEvery: time.Second,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers the handler for job.Type(). Registering after Start has no effect.
func (r *RedisQueue) RegisterJob(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("register %s: queue already running", job.Type())
	}
	if _, exists := r.jobs[job.Type()]; exists {
		return fmt.Errorf("register %s: job already registered", job.Type())
	}
	r.jobs[job.Type()] = job
	return nil
}

// Start pings Redis and starts the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.isRunning = true
	if len(r.jobs) > 0 {
		for i := 0; i < r.config.Workers; i++ {
			r.wg.Add(1)
			go r.worker(i)
		}
		r.wg.Add(1)
		go r.retryProcessor()
	}

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.Int("jobs", len(r.jobs)),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels the workers and waits for in-flight messages until ctx is done.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-doneCh:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// Enqueue adds a message and returns its id.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	r.mu.RLock()
	running := r.isRunning
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return "", ErrNotRunning
	}
	if !known {
		return "", fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

// Depth returns the number of waiting, delayed and dead messages.
func (r *RedisQueue) Depth(ctx context.Context) (waiting, delayed, dead int64, err error) {
	pipe := r.client.Pipeline()
	w := pipe.LLen(ctx, r.queueKey())
	d := pipe.ZCard(ctx, r.retryKey())
	x := pipe.LLen(ctx, r.deadLetterKey())
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("queue depth: %w", err)
	}
	return w.Val(), d.Val(), x.Val(), nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for r.ctx.Err() == nil {
		r.processNextMessage()
	}
	r.logger.Debug("queue worker stopped", logger.Int("worker_id", id))
}

func (r *RedisQueue) processNextMessage() {
	result, err := r.client.BRPop(r.ctx, r.pollEvery, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || r.ctx.Err() != nil {
			return
		}
		r.logger.Error("brpop error", logger.Error(err))
		select {
		case <-r.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		r.push(r.deadLetterKey(), []byte(result[1]))
		return
	}
	r.processMessage(msg)
}

func (r *RedisQueue) processMessage(msg Message) {
	job, exists := r.jobs[msg.Type]
	if !exists {
		r.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		msg.LastError = "no job registered"
		r.moveToDeadLetterQueue(msg)
		return
	}

	start := time.Now()
	err := r.handle(job, msg)
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Duration("elapsed_ms", time.Since(start)),
	}

	switch r.config.decide(msg, err) {
	case outcomeDone:
		r.logger.Debug("message processed", fields...)
	case outcomeRequeue:
		r.logger.Warn("message interrupted, requeued", fields...)
		r.requeue(msg)
	case outcomeRetry:
		msg.Attempts++
		msg.LastError = err.Error()
		retryAt := time.Now().Add(r.config.RetryDelay)
		r.logger.Warn("message failed, retry scheduled",
			append(fields, logger.Error(err), logger.String("retry_at", retryAt.Format(time.RFC3339)))...)
		r.scheduleRetry(msg, retryAt)
	case outcomeDead:
		msg.LastError = err.Error()
		r.logger.Error("message failed, moved to dead letter list", append(fields, logger.Error(err))...)
		r.moveToDeadLetterQueue(msg)
	}
}

func (r *RedisQueue) handle(job Job, msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panic: %v", rec)
		}
	}()
	return job.Handle(r.ctx, msg.Payload)
}

func (r *RedisQueue) requeue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal requeue", logger.Error(err))
		return
	}
	r.push(r.queueKey(), data)
}

func (r *RedisQueue) scheduleRetry(msg Message, retryAt time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.ZAdd(ctx, r.retryKey(), redis.Z{Score: float64(retryAt.Unix()), Member: data}).Err(); err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) moveToDeadLetterQueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	r.push(r.deadLetterKey(), data)
}

// push writes outside the queue context so shutdown does not lose messages.
func (r *RedisQueue) push(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.LPush(ctx, key, data).Err(); err != nil {
		r.logger.Error("lpush", logger.String("key", key), logger.Error(err))
	}
}

func (r *RedisQueue) retryProcessor() {
	defer r.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.processRetryMessages()
		}
	}
}

func (r *RedisQueue) processRetryMessages() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("fetch retry messages", logger.Error(err))
		}
		return
	}

	keys := []string{r.retryKey(), r.queueKey()}
	for _, member := range due {
		if r.ctx.Err() != nil {
			return
		}
		if err := promoteScript.Run(r.ctx, r.client, keys, member).Err(); err != nil && r.ctx.Err() == nil {
			r.logger.Error("promote retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string {
	return r.keyPrefix + ":messages"
}

func (r *RedisQueue) retryKey() string {
	return r.keyPrefix + ":retry"
}

func (r *RedisQueue) deadLetterKey() string {
	return r.keyPrefix + ":dlq"
}
