package montecarlo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// forEachRun calls fn for run = 1..runs on at most workers goroutines.
// fn calls for different runs must touch disjoint state.
func forEachRun(ctx context.Context, runs, workers int, fn func(run int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > runs {
		workers = runs
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for run := 1; run <= runs; run++ {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(run)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
