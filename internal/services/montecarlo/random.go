package montecarlo

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// UniformSource supplies independent draws from U[0,1).
type UniformSource interface {
	Float64() float64
}

// SourceFactory returns the uniform source for a simulation run (1-based).
// Each run must get its own source so runs can be generated concurrently.
type SourceFactory func(run int) UniformSource

// NewPCGFactory returns a factory deriving one PCG stream per run from seed.
// The same seed always yields the same draws for a given run, whatever the
// order in which runs are generated.
func NewPCGFactory(seed uint64) SourceFactory {
	return func(run int) UniformSource {
		return rand.New(rand.NewPCG(seed, uint64(run)))
	}
}

// NewSeed returns a random seed for callers that did not supply one.
func NewSeed() uint64 { return rand.Uint64() }

// NormalQuantile is the inverse CDF of the standard normal distribution.
func NormalQuantile(u float64) float64 {
	return distuv.UnitNormal.Quantile(u)
}

const maxRedraws = 64

// drawOpen draws u from src, rejecting the bounds of [0,1] so the quantile stays finite.
// A source stuck on a bound is clamped into the open interval.
func drawOpen(src UniformSource) float64 {
	u := src.Float64()
	for i := 0; (u <= 0 || u >= 1) && i < maxRedraws; i++ {
		u = src.Float64()
	}
	return math.Min(math.Max(u, math.SmallestNonzeroFloat64), math.Nextafter(1, 0))
}
