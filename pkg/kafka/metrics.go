package kafka

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type producerMetrics struct {
	msgs    *prometheus.CounterVec
	errs    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

type consumerMetrics struct {
	handled    *prometheus.CounterVec
	dlq        *prometheus.CounterVec
	queueDepth *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	return &producerMetrics{
		msgs: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stocksim_kafka_producer_messages_total", Help: "Total messages published to Kafka"},
			[]string{"topic", "compression", "result"},
		)),
		errs: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stocksim_kafka_producer_errors_total", Help: "Total producer errors"},
			[]string{"topic"},
		)),
		bytes: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stocksim_kafka_producer_bytes_total", Help: "Total payload bytes published"},
			[]string{"topic", "compression"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "stocksim_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)),
	}
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	return &consumerMetrics{
		handled: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stocksim_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)),
		dlq: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stocksim_kafka_consumer_dlq_total", Help: "Messages forwarded to the DLQ"},
			[]string{"topic"},
		)),
		queueDepth: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "stocksim_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
			[]string{"topic"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "stocksim_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)),
	}
}

// register registers c on reg, reusing an identical collector that is
// already registered (several clients may share one registry).
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
