package repository

import (
	"context"
	"fmt"

	"StockSim/internal/domain/models"
	domrepo "StockSim/internal/domain/repository"
)

// SourceRouter dispatches GetSeries by SeriesRef.Source.
type SourceRouter struct {
	sources map[string]domrepo.PriceSource
}

// NewSourceRouter creates an empty router.
func NewSourceRouter() *SourceRouter {
	return &SourceRouter{sources: make(map[string]domrepo.PriceSource)}
}

// Register serves source with ps. A nil ps is ignored so disabled backends
// can be passed unconditionally.
func (r *SourceRouter) Register(source string, ps domrepo.PriceSource) *SourceRouter {
	if ps != nil {
		r.sources[source] = ps
	}
	return r
}

// Sources returns the registered source names.
func (r *SourceRouter) Sources() []string {
	out := make([]string, 0, len(r.sources))
	for k := range r.sources {
		out = append(out, k)
	}
	return out
}

func (r *SourceRouter) GetSeries(ctx context.Context, ref models.SeriesRef) (models.HistoricalSeries, error) {
	ps, ok := r.sources[ref.Source]
	if !ok {
		return models.HistoricalSeries{}, fmt.Errorf("%w: %q", domrepo.ErrUnsupportedSource, ref.Source)
	}
	return ps.GetSeries(ctx, ref)
}
