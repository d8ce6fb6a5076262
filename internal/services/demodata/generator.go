// Package demodata generates synthetic daily closing-price series so the
// simulator can be exercised without real market data.
package demodata

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"StockSim/internal/domain/models"

	"github.com/scmhub/calendar"
)

var ErrInvalidParams = errors.New("demodata: invalid params")

// MaxVolatility bounds the daily volatility. Larger values collapse a path to
// zero within weeks.
const MaxVolatility = 1.0

// Params describes a geometric Brownian motion series.
// Drift and Volatility are per trading day.
type Params struct {
	Symbol     string
	Start      time.Time
	Days       int
	StartPrice float64
	Drift      float64
	Volatility float64
	Seed       uint64

	// Exchange is the ISO 10383 MIC whose trading days the series follows
	// (e.g. "xnys"). Empty means every calendar day.
	Exchange string
}

// DefaultParams returns a one-year, moderately volatile series.
func DefaultParams() Params {
	return Params{
		Symbol:     "DEMO",
		Start:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Days:       252,
		StartPrice: 100,
		Drift:      0.0003,
		Volatility: 0.015,
		Seed:       42,
		Exchange:   "xnys",
	}
}

func (p Params) validate() error {
	switch {
	case p.Days < 2:
		return fmt.Errorf("%w: days must be >= 2, got %d", ErrInvalidParams, p.Days)
	case !(p.StartPrice > 0) || math.IsInf(p.StartPrice, 0):
		return fmt.Errorf("%w: start price must be positive, got %v", ErrInvalidParams, p.StartPrice)
	case p.Volatility < 0 || p.Volatility > MaxVolatility || math.IsNaN(p.Volatility):
		return fmt.Errorf("%w: volatility must be in [0, %v], got %v", ErrInvalidParams, MaxVolatility, p.Volatility)
	case math.IsNaN(p.Drift) || math.IsInf(p.Drift, 0):
		return fmt.Errorf("%w: drift must be finite", ErrInvalidParams)
	}
	return nil
}

// Generate builds the series: P[t] = P[t-1] * exp(drift - sigma^2/2 + sigma*z).
// The same params always produce the same series.
func Generate(p Params) (models.HistoricalSeries, error) {
	if err := p.validate(); err != nil {
		return models.HistoricalSeries{}, err
	}
	if p.Start.IsZero() {
		p.Start = DefaultParams().Start
	}

	isTradingDay := tradingDays(p.Exchange)
	r := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	mu := p.Drift - 0.5*p.Volatility*p.Volatility

	points := make([]models.PricePoint, 0, p.Days)
	date := truncateDay(p.Start)
	price := p.StartPrice
	for len(points) < p.Days {
		if !isTradingDay(date) {
			date = date.AddDate(0, 0, 1)
			continue
		}
		if len(points) > 0 {
			price *= math.Exp(mu + p.Volatility*r.NormFloat64())
		}
		if !(price > 0) || math.IsInf(price, 0) {
			return models.HistoricalSeries{}, fmt.Errorf("%w: price left the float64 range on day %d",
				ErrInvalidParams, len(points))
		}
		points = append(points, models.PricePoint{Date: date, Close: price})
		date = date.AddDate(0, 0, 1)
	}

	return models.HistoricalSeries{
		Ref:    models.SeriesRef{Source: models.SourceClickHouse, Symbol: strings.ToUpper(p.Symbol)},
		Points: points,
	}, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// tradingDays returns a predicate for the exchange calendar. Unknown MICs
// fall back to Monday to Friday.
func tradingDays(mic string) func(time.Time) bool {
	if mic == "" {
		return func(time.Time) bool { return true }
	}
	if cal := calendar.GetCalendar(strings.ToLower(mic)); cal != nil {
		return func(t time.Time) bool {
			// noon local time keeps the date stable across time zones
			y, m, d := t.Date()
			return cal.IsBusinessDay(time.Date(y, m, d, 12, 0, 0, 0, cal.Loc))
		}
	}
	return func(t time.Time) bool {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
}
