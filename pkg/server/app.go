package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockSim/internal/usecase"
	xhttp "StockSim/pkg/http"
	pkgkafka "StockSim/pkg/kafka"
	applogger "StockSim/pkg/logger"
)

// JobQueue is a background queue started and stopped with the app.
type JobQueue interface {
	Start() error
	Stop(ctx context.Context) error
}

// Closer is an infrastructure client released on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	l               *applogger.Logger
	httpServer      *xhttp.Server
	consumer        *pkgkafka.Consumer
	jobs            pkgkafka.MessageHandler
	scheduler       *usecase.Scheduler
	jobQueue        JobQueue
	closers         []Closer
	shutdownTimeout time.Duration
}

// Option configures App.
type Option func(*App)

// WithConsumer runs h on the Kafka consumer.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer, a.jobs = c, h
	}
}

// WithScheduler runs the cron scheduler.
func WithScheduler(s *usecase.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithJobQueue runs the background job queue.
func WithJobQueue(q JobQueue) Option {
	return func(a *App) { a.jobQueue = q }
}

// WithClosers registers clients closed in order on shutdown.
func WithClosers(c ...Closer) Option {
	return func(a *App) { a.closers = append(a.closers, c...) }
}

// WithShutdownTimeout bounds how long shutdown waits for in-flight work.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) { a.shutdownTimeout = d }
}

// New creates a new App instance with all dependencies.
func New(l *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{l: l, httpServer: httpServer, shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is cancelled or the HTTP
// server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	if a.consumer != nil && a.jobs != nil {
		a.consumer.RegisterHandler(a.jobs)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return errors.Join(fmt.Errorf("kafka consumer: %w", err), a.shutdown())
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.jobs.Topic()))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
			return errors.Join(fmt.Errorf("job queue: %w", err), a.shutdown())
		}
	}

	if err := a.httpServer.Start(); err != nil {
		return errors.Join(fmt.Errorf("http server: %w", err), a.shutdown())
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err := <-a.httpServer.Errors():
		runErr = fmt.Errorf("http server: %w", err)
	}
	return errors.Join(runErr, a.shutdown())
}

// shutdown stops intake first, then waits for running work, then closes clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if c.Close == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("component", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.Name, err))
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
