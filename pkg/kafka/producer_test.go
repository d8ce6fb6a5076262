package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_Publish(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "gzip", reg)

	ctx := WithTraceID(context.Background(), "trace-1")
	require.NoError(t, p.Publish(ctx, "events", []byte("id"), map[string]int{"n_days": 5}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "events", w.msgs[0].Topic)
	assert.JSONEq(t, `{"n_days":5}`, string(w.msgs[0].Value))
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "trace-1", string(w.msgs[0].Headers[0].Value))

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("events", "gzip", "ok")))
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, "gzip", prometheus.NewRegistry())

	err := p.PublishBatch(context.Background(), "events", []Message{{Value: "a"}, {Value: []byte("b")}})
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.errs.WithLabelValues("events")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("events", "gzip", "error")))
}

func TestMetricsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := newProducerMetrics(reg)
	b := newProducerMetrics(reg)
	assert.Same(t, a.msgs, b.msgs)
}
