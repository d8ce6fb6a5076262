package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"StockSim/internal/domain/models"
	xhttp "StockSim/pkg/http"
	pkgkafka "StockSim/pkg/kafka"
	"StockSim/pkg/queue"
)

// QueueJobType is the message type of queued simulation requests.
const QueueJobType = "simulation"

// decodeJob parses and validates a simulation request body. Failures wrap
// ErrInvalidRequest.
func decodeJob(ctx context.Context, b []byte) (models.SimulationRequest, error) {
	var req models.SimulationRequest
	if verrs := xhttp.DecodeAndValidate(ctx, b, &req); len(verrs) > 0 {
		return req, fmt.Errorf("%w: %w", ErrInvalidRequest, xhttp.ValidationFailed(verrs))
	}
	return req, nil
}

// SimulationJobHandler runs simulation requests consumed from Kafka. The
// message body has the same shape as POST /api/simulations.
type SimulationJobHandler struct {
	topic string
	uc    *SimulationUsecase
}

func NewSimulationJobHandler(topic string, uc *SimulationUsecase) *SimulationJobHandler {
	return &SimulationJobHandler{topic: topic, uc: uc}
}

func (h *SimulationJobHandler) Topic() string { return h.topic }

// Handle rejects malformed jobs as permanent so they skip retries.
func (h *SimulationJobHandler) Handle(ctx context.Context, b []byte) error {
	req, err := decodeJob(ctx, b)
	if err != nil {
		return pkgkafka.Permanent(err)
	}

	_, err = h.uc.Simulate(ctx, req, models.TriggerKafka)
	if err != nil && !Retryable(err) {
		return pkgkafka.Permanent(err)
	}
	return err
}

var _ pkgkafka.MessageHandler = (*SimulationJobHandler)(nil)

// SimulationQueueJob runs simulation requests taken from the Redis job
// queue. Pair it with a QueueConfig whose Retryable is usecase.Retryable.
type SimulationQueueJob struct {
	uc *SimulationUsecase
}

func NewSimulationQueueJob(uc *SimulationUsecase) *SimulationQueueJob {
	return &SimulationQueueJob{uc: uc}
}

func (j *SimulationQueueJob) Type() string { return QueueJobType }

func (j *SimulationQueueJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := decodeJob(ctx, payload)
	if err != nil {
		return err
	}
	_, err = j.uc.Simulate(ctx, req, models.TriggerQueue)
	return err
}

var _ queue.Job = (*SimulationQueueJob)(nil)
