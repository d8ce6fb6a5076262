package usecase

import (
	"context"
	"fmt"

	"StockSim/internal/domain/models"
	drepo "StockSim/internal/domain/repository"
	"StockSim/internal/services/demodata"
	applogger "StockSim/pkg/logger"
	"StockSim/pkg/util"
)

// SeedUsecase writes synthetic series so a fresh warehouse has something to simulate.
type SeedUsecase struct {
	writer     drepo.SeriesWriter
	l          *applogger.Logger
	invalidate []Invalidator
}

func NewSeedUsecase(writer drepo.SeriesWriter, l *applogger.Logger, invalidate ...Invalidator) *SeedUsecase {
	if l == nil {
		l = applogger.Nop()
	}
	return &SeedUsecase{writer: writer, l: l, invalidate: invalidate}
}

// Seed generates the series and replaces the target table with it.
func (uc *SeedUsecase) Seed(ctx context.Context, req models.SeedRequest) (string, models.HistoricalSeries, error) {
	p := demodata.Params{
		Symbol:     req.Symbol,
		Days:       req.Days,
		StartPrice: req.StartPrice,
		Drift:      req.Drift,
		Volatility: req.Volatility,
		Seed:       req.Seed,
		Exchange:   req.Exchange,
	}
	if req.Start != "" {
		t, ok := util.ParseTime(req.Start)
		if !ok {
			return "", models.HistoricalSeries{}, fmt.Errorf("%w: invalid start %q", ErrInvalidRequest, req.Start)
		}
		p.Start = t
	}

	series, err := demodata.Generate(p)
	if err != nil {
		return "", models.HistoricalSeries{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	table, err := uc.writer.WriteSeries(ctx, req.Target, series)
	if err != nil {
		return "", models.HistoricalSeries{}, fmt.Errorf("write series: %w", err)
	}
	for _, inv := range uc.invalidate {
		if err := inv.Invalidate(ctx); err != nil {
			uc.l.Warn("cache invalidation failed", applogger.Error(err))
		}
	}

	uc.l.Info("seeded series",
		applogger.String("table", table),
		applogger.String("symbol", series.Ref.Symbol),
		applogger.Int("rows", series.Len()),
	)
	return table, series, nil
}
