package montecarlo

import (
	"fmt"
	"math"
	"sort"

	"StockSim/internal/domain/models"
)

// Summarize reports the mean and the 5%/95% continuous percentiles of the
// simulated closes selected by scope, each rounded to 2 decimals.
func Summarize(paths []models.SimulatedPath, scope models.SummaryScope) (models.SimulationSummary, error) {
	if scope == "" {
		scope = models.ScopeAll
	}
	values, err := collectCloses(paths, scope)
	if err != nil {
		return models.SimulationSummary{}, err
	}
	if len(values) == 0 {
		return models.SimulationSummary{}, fmt.Errorf("%w: no simulated closes", ErrEmptyResult)
	}

	sort.Float64s(values)
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return models.SimulationSummary{
		ExpectedClose: Round2(sum / float64(len(values))),
		Quantile05:    Round2(PercentileCont(values, 0.05)),
		Quantile95:    Round2(PercentileCont(values, 0.95)),
		Scope:         scope,
		Observations:  len(values),
	}, nil
}

func collectCloses(paths []models.SimulatedPath, scope models.SummaryScope) ([]float64, error) {
	switch scope {
	case models.ScopeTerminal:
		out := make([]float64, 0, len(paths))
		for _, p := range paths {
			if len(p.Closes) > 0 {
				out = append(out, p.Terminal())
			}
		}
		return out, nil
	case models.ScopeAll:
		n := 0
		for _, p := range paths {
			n += len(p.Closes)
		}
		out := make([]float64, 0, n)
		for _, p := range paths {
			out = append(out, p.Closes...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown summary scope %q", ErrInvalidInput, scope)
	}
}

// PercentileCont returns the p-th percentile of sorted values using linear
// interpolation between closest ranks (position p*(n-1)).
func PercentileCont(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// Round2 rounds half away from zero to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
