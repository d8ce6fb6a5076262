package montecarlo

import (
	"context"
	"fmt"
	"math"

	"StockSim/internal/domain/models"
)

// Grid holds the daily return of every (run, day) cell of a simulation.
// Day 0 is the anchor and always holds 1.0.
type Grid struct {
	days    int
	returns [][]float64 // [run-1][day]
}

// Days returns the simulated horizon (excluding day 0).
func (g *Grid) Days() int { return g.days }

// Runs returns the number of simulation runs.
func (g *Grid) Runs() int { return len(g.returns) }

// Return returns the daily return of run (1-based) on day.
func (g *Grid) Return(run, day int) float64 { return g.returns[run-1][day] }

// RunReturns returns the returns of one run in ascending day order.
// The slice is owned by the grid.
func (g *Grid) RunReturns(run int) []float64 { return g.returns[run-1] }

// Generate samples daily returns exp(drift + stddev*z), z = Φ⁻¹(u), for every
// day in [1, days] and run in [1, runs]. Runs are generated concurrently by up
// to workers goroutines, each run drawing from its own source.
func Generate(ctx context.Context, st models.ReturnStatistics, days, runs int, sources SourceFactory, workers int) (*Grid, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: n_days must be >= 0, got %d", ErrInvalidInput, days)
	}
	if runs < 1 {
		return nil, fmt.Errorf("%w: n_sim_runs must be >= 1, got %d", ErrInvalidInput, runs)
	}
	if sources == nil {
		return nil, fmt.Errorf("%w: uniform source is required", ErrInvalidInput)
	}

	g := &Grid{days: days, returns: make([][]float64, runs)}
	err := forEachRun(ctx, runs, workers, func(run int) error {
		src := sources(run)
		row := make([]float64, days+1)
		row[0] = 1.0
		for day := 1; day <= days; day++ {
			z := NormalQuantile(drawOpen(src))
			row[day] = math.Exp(st.Drift + st.StdDev*z)
		}
		g.returns[run-1] = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
