package montecarlo

import (
	"context"
	"fmt"
	"time"

	"StockSim/internal/domain/models"

	"github.com/google/uuid"
)

// Option configures Simulator.
type Option func(*Simulator)

// Params are the per-request simulation parameters.
type Params struct {
	Days  int
	Runs  int
	Seed  *uint64
	Scope models.SummaryScope
}

// Simulator runs the whole pipeline: statistics, generation, accumulation and summary.
type Simulator struct {
	workers      int
	maxDays      int
	maxRuns      int
	maxGridCells int
	sources      func(seed uint64) SourceFactory
	now          func() time.Time
}

// NewSimulator creates a Simulator. Zero limits mean unlimited.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		sources: NewPCGFactory,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithWorkers bounds the goroutines used per request (0 = GOMAXPROCS).
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		s.workers = n
	}
}

// WithLimits caps the request size.
func WithLimits(maxDays, maxRuns, maxGridCells int) Option {
	return func(s *Simulator) {
		s.maxDays = maxDays
		s.maxRuns = maxRuns
		s.maxGridCells = maxGridCells
	}
}

// WithSources replaces the seeded PCG streams, e.g. with a fixed source in tests.
func WithSources(fn func(seed uint64) SourceFactory) Option {
	return func(s *Simulator) {
		if fn != nil {
			s.sources = fn
		}
	}
}

// Validate checks params against the simulator limits.
func (s *Simulator) Validate(p Params) error {
	if p.Days < 0 {
		return fmt.Errorf("%w: n_days must be >= 0, got %d", ErrInvalidInput, p.Days)
	}
	if p.Runs < 1 {
		return fmt.Errorf("%w: n_sim_runs must be >= 1, got %d", ErrInvalidInput, p.Runs)
	}
	if s.maxDays > 0 && p.Days > s.maxDays {
		return fmt.Errorf("%w: n_days %d exceeds max %d", ErrInvalidInput, p.Days, s.maxDays)
	}
	if s.maxRuns > 0 && p.Runs > s.maxRuns {
		return fmt.Errorf("%w: n_sim_runs %d exceeds max %d", ErrInvalidInput, p.Runs, s.maxRuns)
	}
	if cells := (p.Days + 1) * p.Runs; s.maxGridCells > 0 && cells > s.maxGridCells {
		return fmt.Errorf("%w: %d cells exceeds max %d", ErrGridTooLarge, cells, s.maxGridCells)
	}
	switch p.Scope {
	case "", models.ScopeAll, models.ScopeTerminal:
	default:
		return fmt.Errorf("%w: unknown summary scope %q", ErrInvalidInput, p.Scope)
	}
	return nil
}

// Run simulates p.Runs price paths of p.Days days from the series.
func (s *Simulator) Run(ctx context.Context, series models.HistoricalSeries, p Params) (*models.SimulationResult, error) {
	start := s.now()
	if err := s.Validate(p); err != nil {
		return nil, err
	}

	st, err := EstimateReturns(series)
	if err != nil {
		return nil, fmt.Errorf("estimate returns: %w", err)
	}
	return s.RunWithStatistics(ctx, st, p, start)
}

// RunWithStatistics runs the pipeline from already estimated statistics.
func (s *Simulator) RunWithStatistics(ctx context.Context, st models.ReturnStatistics, p Params, start time.Time) (*models.SimulationResult, error) {
	if err := s.Validate(p); err != nil {
		return nil, err
	}
	if start.IsZero() {
		start = s.now()
	}
	seed := NewSeed()
	if p.Seed != nil {
		seed = *p.Seed
	}

	grid, err := Generate(ctx, st, p.Days, p.Runs, s.sources(seed), s.workers)
	if err != nil {
		return nil, fmt.Errorf("generate paths: %w", err)
	}
	paths, err := Accumulate(ctx, grid, st.LastClose, s.workers)
	if err != nil {
		return nil, fmt.Errorf("accumulate paths: %w", err)
	}
	summary, err := Summarize(paths, p.Scope)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	return &models.SimulationResult{
		ID:         uuid.NewString(),
		Seed:       seed,
		Days:       p.Days,
		Runs:       p.Runs,
		Statistics: st,
		Summary:    summary,
		Paths:      paths,
		CreatedAt:  start,
		Duration:   s.now().Sub(start),
	}, nil
}
