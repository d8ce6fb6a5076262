package montecarlo

import (
	"fmt"
	"math"
	"sort"

	"StockSim/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// LogReturns computes r_i = ln(1 + (p_i - p_{i-1}) / p_{i-1}) for i >= 1.
// It returns a slice of length len(closes)-1.
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 prices, got %d", ErrInsufficientData, len(closes))
	}
	out := make([]float64, 0, len(closes)-1)
	for i, p := range closes {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: price %v at row %d must be positive", ErrInvalidInput, p, i)
		}
		if i == 0 {
			continue
		}
		prev := closes[i-1]
		pct := (p - prev) / prev
		out = append(out, math.Log1p(pct))
	}
	return out, nil
}

// EstimateReturns derives the daily log-return distribution of a series.
// Points are ordered by date first; the series itself is not modified.
func EstimateReturns(series models.HistoricalSeries) (models.ReturnStatistics, error) {
	points := series.Points
	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) }) {
		points = append([]models.PricePoint(nil), points...)
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	rets, err := LogReturns(closes)
	if err != nil {
		return models.ReturnStatistics{}, err
	}

	var mean, variance float64
	if len(rets) == 1 {
		// sample variance of a single observation is undefined; treat it as a flat distribution
		mean = rets[0]
	} else {
		mean, variance = stat.MeanVariance(rets, nil)
	}

	return models.ReturnStatistics{
		Mean:         mean,
		Variance:     variance,
		StdDev:       math.Sqrt(variance),
		Drift:        mean - 0.5*variance,
		LastClose:    closes[len(closes)-1],
		Observations: len(rets),
	}, nil
}
