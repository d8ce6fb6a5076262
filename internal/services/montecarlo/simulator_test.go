package montecarlo

import (
	"context"
	"math"
	"testing"
	"time"

	"StockSim/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func medianSources(uint64) SourceFactory { return constFactory(0.5) }

func TestSimulator_Example(t *testing.T) {
	sim := NewSimulator(WithSources(medianSources))

	res, err := sim.Run(context.Background(), seriesOf(100, 102, 101), Params{Days: 1, Runs: 1})
	require.NoError(t, err)

	require.Len(t, res.Paths, 1)
	closes := res.Paths[0].Closes
	require.Len(t, closes, 2)
	assert.Equal(t, 101.0, closes[0])
	assert.InDelta(t, 101*math.Exp(res.Statistics.Drift), closes[1], 1e-6)
	assert.Equal(t, models.ScopeAll, res.Summary.Scope)
	assert.NotEmpty(t, res.ID)
}

func TestSimulator_ZeroDays(t *testing.T) {
	sim := NewSimulator()
	res, err := sim.Run(context.Background(), seriesOf(100, 102, 101), Params{Days: 0, Runs: 4})
	require.NoError(t, err)

	for _, p := range res.Paths {
		assert.Equal(t, []float64{101}, p.Closes)
	}
	assert.Equal(t, 101.0, res.Summary.ExpectedClose)
	assert.Equal(t, 101.0, res.Summary.Quantile05)
	assert.Equal(t, 101.0, res.Summary.Quantile95)

	rows := res.Rows()
	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, 0, r.Day)
		assert.Equal(t, i+1, r.Run)
	}
}

func TestSimulator_DeterministicAcrossWorkers(t *testing.T) {
	seed := uint64(2024)
	series := seriesOf(50, 51.2, 49.9, 52.3, 53.1, 52.8, 54)
	p := Params{Days: 40, Runs: 16, Seed: &seed}

	a, err := NewSimulator(WithWorkers(1)).Run(context.Background(), series, p)
	require.NoError(t, err)
	b, err := NewSimulator(WithWorkers(6)).Run(context.Background(), series, p)
	require.NoError(t, err)

	assert.Equal(t, seed, a.Seed)
	assert.Equal(t, a.Rows(), b.Rows())
	assert.Equal(t, a.Summary, b.Summary)
}

func TestSimulator_RowsOrdered(t *testing.T) {
	seed := uint64(5)
	res, err := NewSimulator().Run(context.Background(), seriesOf(10, 11, 10.5), Params{Days: 3, Runs: 3, Seed: &seed})
	require.NoError(t, err)

	rows := res.Rows()
	require.Len(t, rows, 12)
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		assert.True(t, prev.Day < cur.Day || (prev.Day == cur.Day && prev.Run < cur.Run))
	}
}

func TestSimulator_Validate(t *testing.T) {
	sim := NewSimulator(WithLimits(100, 10, 500))

	require.ErrorIs(t, sim.Validate(Params{Days: -1, Runs: 1}), ErrInvalidInput)
	require.ErrorIs(t, sim.Validate(Params{Days: 1, Runs: 0}), ErrInvalidInput)
	require.ErrorIs(t, sim.Validate(Params{Days: 101, Runs: 1}), ErrInvalidInput)
	require.ErrorIs(t, sim.Validate(Params{Days: 1, Runs: 11}), ErrInvalidInput)
	require.ErrorIs(t, sim.Validate(Params{Days: 99, Runs: 10}), ErrGridTooLarge)
	require.ErrorIs(t, sim.Validate(Params{Days: 1, Runs: 1, Scope: "p50"}), ErrInvalidInput)
	require.NoError(t, sim.Validate(Params{Days: 49, Runs: 10, Scope: models.ScopeTerminal}))
}

func TestSimulator_InsufficientData(t *testing.T) {
	_, err := NewSimulator().Run(context.Background(), seriesOf(100), Params{Days: 1, Runs: 1})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestSimulator_Timing(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sim := NewSimulator()
	sim.now = func() time.Time { return now }

	res, err := sim.Run(context.Background(), seriesOf(100, 101), Params{Days: 2, Runs: 2})
	require.NoError(t, err)
	assert.Equal(t, now, res.CreatedAt)
	assert.Zero(t, res.Duration)
}

func TestSimulator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulator().Run(ctx, seriesOf(100, 101, 102), Params{Days: 10, Runs: 10})
	require.ErrorIs(t, err, context.Canceled)
}
