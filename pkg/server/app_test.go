package server

import (
	"context"
	"errors"
	"testing"
	"time"

	xhttp "StockSim/pkg/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_RunClosesOnCancel(t *testing.T) {
	srv := xhttp.NewServer(nil,
		xhttp.WithPort(0),
		xhttp.WithMetrics("/metrics", time.Second, prometheus.NewRegistry()),
	)

	var order []string
	app := New(nil, srv,
		WithShutdownTimeout(2*time.Second),
		WithClosers(
			Closer{Name: "history", Close: func() error { order = append(order, "history"); return nil }},
			Closer{Name: "cache", Close: func() error { order = append(order, "cache"); return errors.New("already closed") }},
			Closer{Name: "skipped"},
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "close cache")
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"history", "cache"}, order)
}

type fakeQueue struct {
	startErr error
	started  bool
	stopped  bool
}

func (q *fakeQueue) Start() error {
	q.started = true
	return q.startErr
}

func (q *fakeQueue) Stop(context.Context) error {
	q.stopped = true
	return nil
}

func TestApp_JobQueueLifecycle(t *testing.T) {
	srv := xhttp.NewServer(nil,
		xhttp.WithPort(0),
		xhttp.WithMetrics("", 0, nil),
	)
	q := &fakeQueue{}
	app := New(nil, srv, WithJobQueue(q), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, q.started)
	assert.True(t, q.stopped)
}

func TestApp_JobQueueStartError(t *testing.T) {
	srv := xhttp.NewServer(nil, xhttp.WithPort(0), xhttp.WithMetrics("", 0, nil))
	q := &fakeQueue{startErr: errors.New("redis down")}
	app := New(nil, srv, WithJobQueue(q))

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job queue")
	assert.True(t, q.stopped)
}
