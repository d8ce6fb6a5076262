package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockSim/internal/domain/models"
	drepo "StockSim/internal/domain/repository"
	"StockSim/internal/services/montecarlo"
	applogger "StockSim/pkg/logger"
)

var (
	// ErrInvalidRequest is returned for requests that fail before any work is done.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSaveUnavailable is returned when a save target is given but no result store is configured.
	ErrSaveUnavailable = errors.New("result store not configured")
	// ErrHistoryUnavailable is returned by history lookups when history is disabled.
	ErrHistoryUnavailable = errors.New("simulation history disabled")
	// ErrUnknownJob is returned by Scheduler.RunNow for unregistered names.
	ErrUnknownJob = errors.New("unknown scheduled job")
)

// Invalidator drops cached data after a table was written.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SimulationConfig holds request-independent simulation settings.
type SimulationConfig struct {
	Timeout      time.Duration
	DefaultScope models.SummaryScope
}

// SimulationUsecase fetches a series, simulates it and fans the outcome out
// to the result store, the history and the event stream.
type SimulationUsecase struct {
	source  drepo.PriceSource
	results drepo.ResultStore
	history drepo.HistoryStore
	events  drepo.EventPublisher
	metrics drepo.Metrics
	sim     *montecarlo.Simulator
	cfg     SimulationConfig
	l       *applogger.Logger

	invalidate []Invalidator
}

// NewSimulationUsecase wires the simulation flow. results, history and events may be nil.
func NewSimulationUsecase(
	source drepo.PriceSource,
	results drepo.ResultStore,
	history drepo.HistoryStore,
	events drepo.EventPublisher,
	metrics drepo.Metrics,
	sim *montecarlo.Simulator,
	cfg SimulationConfig,
	l *applogger.Logger,
	invalidate ...Invalidator,
) *SimulationUsecase {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.DefaultScope == "" {
		cfg.DefaultScope = models.ScopeAll
	}
	return &SimulationUsecase{
		source:     source,
		results:    results,
		history:    history,
		events:     events,
		metrics:    metrics,
		sim:        sim,
		cfg:        cfg,
		l:          l,
		invalidate: invalidate,
	}
}

// Outcome is a finished simulation plus what happened to it afterwards.
type Outcome struct {
	Result *models.SimulationResult
	Record models.SimulationRecord
}

// Response renders the outcome; rows are included only when asked for.
func (o *Outcome) Response(includeRows bool) *models.SimulationResponse {
	resp := &models.SimulationResponse{
		ID:         o.Record.ID,
		Seed:       o.Record.Seed,
		Series:     o.Record.Series,
		Days:       o.Record.Days,
		Runs:       o.Record.Runs,
		Statistics: o.Record.Statistics,
		Summary:    o.Record.Summary,
		SavedTo:    o.Record.SavedTo,
		DurationMS: o.Record.DurationMS,
		CreatedAt:  o.Record.CreatedAt,
	}
	if includeRows {
		resp.Rows = o.Result.Rows()
	}
	return resp
}

// Params converts a request into simulator params, applying the default scope.
func (uc *SimulationUsecase) Params(req models.SimulationRequest) montecarlo.Params {
	scope := models.SummaryScope(req.Scope)
	if scope == "" {
		scope = uc.cfg.DefaultScope
	}
	return montecarlo.Params{Days: req.Days, Runs: req.Runs, Seed: req.Seed, Scope: scope}
}

// Simulate runs one simulation request end to end.
func (uc *SimulationUsecase) Simulate(ctx context.Context, req models.SimulationRequest, trigger string) (*Outcome, error) {
	start := time.Now()
	out, err := uc.simulate(ctx, req, trigger)
	if err != nil {
		uc.recordError(err)
		uc.l.Warn("simulation failed",
			applogger.String("trigger", trigger),
			applogger.String("source", req.Source),
			applogger.Int("n_days", req.Days),
			applogger.Int("n_sim_runs", req.Runs),
			applogger.Duration("duration_ms", time.Since(start)),
			applogger.Error(err),
		)
		return nil, err
	}

	uc.l.Info("simulation completed",
		applogger.String("id", out.Record.ID),
		applogger.String("trigger", trigger),
		applogger.String("series", out.Record.Series.Label()),
		applogger.Int("n_days", out.Record.Days),
		applogger.Int("n_sim_runs", out.Record.Runs),
		applogger.Uint64("seed", out.Record.Seed),
		applogger.Float64("expected_close", out.Record.Summary.ExpectedClose),
		applogger.String("saved_to", out.Record.SavedTo),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// Check runs every validation Simulate does before touching a data source.
func (uc *SimulationUsecase) Check(req models.SimulationRequest) error {
	_, _, err := uc.check(req)
	return err
}

func (uc *SimulationUsecase) check(req models.SimulationRequest) (models.SeriesRef, montecarlo.Params, error) {
	ref, err := req.SeriesQuery.Ref()
	if err != nil {
		return ref, montecarlo.Params{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	params := uc.Params(req)
	if err := uc.sim.Validate(params); err != nil {
		return ref, params, err
	}
	if req.Save != nil && uc.results == nil {
		return ref, params, ErrSaveUnavailable
	}
	return ref, params, nil
}

func (uc *SimulationUsecase) simulate(ctx context.Context, req models.SimulationRequest, trigger string) (*Outcome, error) {
	ref, params, err := uc.check(req)
	if err != nil {
		return nil, err
	}

	if uc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.Timeout)
		defer cancel()
	}

	fetchStart := time.Now()
	series, err := uc.source.GetSeries(ctx, ref)
	uc.latency("fetch_series", fetchStart)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", ref.Label(), err)
	}

	result, err := uc.sim.Run(ctx, series, params)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", ref.Label(), err)
	}
	if uc.metrics != nil {
		uc.metrics.RecordSimulation(ref.Source, result.Days, result.Runs, result.Duration)
	}

	rec := models.SimulationRecord{
		ID:         result.ID,
		Trigger:    trigger,
		Series:     ref,
		Seed:       result.Seed,
		Days:       result.Days,
		Runs:       result.Runs,
		Statistics: result.Statistics,
		Summary:    result.Summary,
		DurationMS: result.Duration.Milliseconds(),
		CreatedAt:  result.CreatedAt.UTC(),
	}

	if req.Save != nil {
		saveStart := time.Now()
		rec.SavedTo, err = uc.results.SaveSimulation(ctx, *req.Save, result.Rows())
		uc.latency("save_results", saveStart)
		if err != nil {
			return nil, fmt.Errorf("save results: %w", err)
		}
		uc.invalidateCaches(ctx)
	}

	uc.afterRun(ctx, rec)
	return &Outcome{Result: result, Record: rec}, nil
}

// afterRun records history and publishes the completion event. Neither
// failure fails the request.
func (uc *SimulationUsecase) afterRun(ctx context.Context, rec models.SimulationRecord) {
	ctx = context.WithoutCancel(ctx)
	if uc.history != nil {
		if err := uc.history.Record(ctx, rec); err != nil {
			uc.recordError(err)
			uc.l.Error("record simulation history", applogger.String("id", rec.ID), applogger.Error(err))
		}
	}
	if uc.events != nil {
		ev := models.SimulationCompletedEvent{SimulationRecord: rec, Timestamp: time.Now().UTC()}
		if err := uc.events.PublishSimulationCompleted(ctx, ev); err != nil {
			if uc.metrics != nil {
				uc.metrics.RecordError("publish")
			}
			uc.l.Error("publish simulation completed", applogger.String("id", rec.ID), applogger.Error(err))
		}
	}
}

// Series previews a historical series.
func (uc *SimulationUsecase) Series(ctx context.Context, q models.SeriesQuery) (*models.SeriesResponse, error) {
	ref, err := q.Ref()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	start := time.Now()
	s, err := uc.source.GetSeries(ctx, ref)
	uc.latency("fetch_series", start)
	if err != nil {
		uc.recordError(err)
		return nil, fmt.Errorf("fetch series %s: %w", ref.Label(), err)
	}
	return &models.SeriesResponse{Series: ref, Count: s.Len(), Points: s.Points}, nil
}

// GetSimulation returns a past simulation from the history.
func (uc *SimulationUsecase) GetSimulation(ctx context.Context, id string) (models.SimulationRecord, error) {
	if uc.history == nil {
		return models.SimulationRecord{}, ErrHistoryUnavailable
	}
	return uc.history.Get(ctx, id)
}

// ListSimulations returns the most recent simulations, newest first.
func (uc *SimulationUsecase) ListSimulations(ctx context.Context, limit int) ([]models.SimulationRecord, error) {
	if uc.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return uc.history.List(ctx, limit)
}

func (uc *SimulationUsecase) invalidateCaches(ctx context.Context) {
	for _, inv := range uc.invalidate {
		if err := inv.Invalidate(ctx); err != nil {
			uc.l.Warn("cache invalidation failed", applogger.Error(err))
		}
	}
}

func (uc *SimulationUsecase) latency(op string, start time.Time) {
	if uc.metrics != nil {
		uc.metrics.RecordLatency(op, time.Since(start).Seconds())
	}
}

func (uc *SimulationUsecase) recordError(err error) {
	if uc.metrics != nil {
		uc.metrics.RecordError(ErrorKind(err))
	}
}

// ErrorKind classifies err into a low-cardinality metric label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, montecarlo.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, montecarlo.ErrGridTooLarge):
		return "grid_too_large"
	case errors.Is(err, montecarlo.ErrInsufficientData), errors.Is(err, montecarlo.ErrEmptyResult):
		return "insufficient_data"
	case errors.Is(err, drepo.ErrNotFound):
		return "not_found"
	case errors.Is(err, drepo.ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, drepo.ErrUnsupportedSource):
		return "unsupported_source"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// Retryable reports whether running the same request again could succeed.
func Retryable(err error) bool {
	switch ErrorKind(err) {
	case "internal", "timeout":
		return !errors.Is(err, ErrSaveUnavailable) && !errors.Is(err, ErrHistoryUnavailable)
	default:
		return false
	}
}
