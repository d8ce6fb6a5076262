package repository

import (
	"context"
	"time"

	"StockSim/internal/domain/models"
	"StockSim/internal/domain/repository"
	pkgkafka "StockSim/pkg/kafka"
)

// KafkaPublisher implements EventPublisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// PublishSimulationCompleted publishes ev keyed by simulation id.
func (p *KafkaPublisher) PublishSimulationCompleted(ctx context.Context, ev models.SimulationCompletedEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return p.producer.Publish(ctx, p.topic, []byte(ev.ID), ev)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishSimulationCompleted(context.Context, models.SimulationCompletedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
