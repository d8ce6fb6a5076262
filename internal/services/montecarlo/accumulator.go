package montecarlo

import (
	"context"
	"fmt"

	"StockSim/internal/domain/models"
)

// Accumulate compounds every run of the grid into a price path:
// close[k] = lastClose * prod(return[0..k]). Paths are returned ordered by run.
func Accumulate(ctx context.Context, g *Grid, lastClose float64, workers int) ([]models.SimulatedPath, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrInvalidInput)
	}
	if !(lastClose > 0) {
		return nil, fmt.Errorf("%w: last close must be positive, got %v", ErrInvalidInput, lastClose)
	}

	paths := make([]models.SimulatedPath, g.Runs())
	err := forEachRun(ctx, g.Runs(), workers, func(run int) error {
		rets := g.RunReturns(run)
		paths[run-1] = models.SimulatedPath{
			Run:     run,
			Closes:  compound(lastClose, rets),
			Returns: rets,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// compound is a running product of rets seeded with start.
func compound(start float64, rets []float64) []float64 {
	out := make([]float64, len(rets))
	acc := start
	for k, r := range rets {
		acc *= r
		out[k] = acc
	}
	return out
}
