package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"StockSim/internal/domain/models"
	"StockSim/pkg/config"
	xhttp "StockSim/pkg/http"
	applogger "StockSim/pkg/logger"

	"github.com/robfig/cron/v3"
)

// ScheduledJob is a simulation request run on a cron spec (with seconds field).
type ScheduledJob struct {
	Name    string
	Spec    string
	Request models.SimulationRequest
}

// ParseSchedules decodes and validates the configured schedules.
func ParseSchedules(ctx context.Context, schedules []config.Schedule) ([]ScheduledJob, error) {
	jobs := make([]ScheduledJob, 0, len(schedules))
	for i, s := range schedules {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i)
		}
		b, err := json.Marshal(s.Request)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: encode request: %w", name, err)
		}
		var req models.SimulationRequest
		if verrs := xhttp.DecodeAndValidate(ctx, b, &req); len(verrs) > 0 {
			return nil, fmt.Errorf("schedule %s: %w", name, xhttp.ValidationFailed(verrs))
		}
		jobs = append(jobs, ScheduledJob{Name: name, Spec: s.Cron, Request: req})
	}
	return jobs, nil
}

// Pruner deletes history entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Locker guards a scheduled run so only one instance executes it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Scheduler runs periodic simulations and history maintenance.
type Scheduler struct {
	cron    *cron.Cron
	uc      *SimulationUsecase
	l       *applogger.Logger
	locker  Locker
	lockTTL time.Duration

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]func(context.Context) error
}

func NewScheduler(uc *SimulationUsecase, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	cl := cronLogger{l: l}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		uc:   uc,
		l:    l,
		ctx:  context.Background(),
		jobs: make(map[string]func(context.Context) error),
	}
}

// SetLocker makes every run take a lock named after the job first. Runs
// that cannot get the lock are skipped.
func (s *Scheduler) SetLocker(l Locker, ttl time.Duration) {
	s.locker, s.lockTTL = l, ttl
}

// AddSimulation registers a scheduled simulation.
func (s *Scheduler) AddSimulation(job ScheduledJob) error {
	req := job.Request
	return s.add(job.Name, job.Spec, func(ctx context.Context) error {
		_, err := s.uc.Simulate(ctx, req, models.TriggerSchedule)
		return err
	})
}

// AddPrune registers a job that drops history older than retention.
func (s *Scheduler) AddPrune(spec string, p Pruner, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("prune: retention must be positive, got %s", retention)
	}
	return s.add("history-prune", spec, func(ctx context.Context) error {
		n, err := p.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		s.l.Info("history pruned", applogger.Int64("deleted", n))
		return nil
	})
}

func (s *Scheduler) add(name, spec string, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("register %s: duplicate job name", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, fn) }); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	s.jobs[name] = fn
	return nil
}

func (s *Scheduler) run(name string, fn func(context.Context) error) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if s.locker != nil {
		key := "schedule:" + name
		ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			s.l.Error("scheduled job lock failed", applogger.String("job", name), applogger.Error(err))
			return
		}
		if !ok {
			s.l.Debug("scheduled job locked elsewhere, skipped", applogger.String("job", name))
			return
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				s.l.Warn("scheduled job unlock failed", applogger.String("job", name), applogger.Error(err))
			}
		}()
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.l.Error("scheduled job failed", applogger.String("job", name), applogger.Error(err))
		return
	}
	s.l.Debug("scheduled job done", applogger.String("job", name), applogger.Duration("duration_ms", time.Since(start)))
}

// RunNow executes a registered job immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s: %w", name, ErrUnknownJob)
	}
	return fn(ctx)
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Start runs the cron loop; jobs inherit ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("jobs", s.Len()))
}

// Stop stops the cron loop and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
