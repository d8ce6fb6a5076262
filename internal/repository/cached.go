package repository

import (
	"context"
	"time"

	"StockSim/internal/domain/models"
	domrepo "StockSim/internal/domain/repository"
	"StockSim/pkg/cache"
)

// Cache key prefixes.
const (
	catalogKeyPrefix = "catalog:"
	seriesKeyPrefix  = "series:"
)

// CachedPriceSource caches series by SeriesRef.Key.
type CachedPriceSource struct {
	next    domrepo.PriceSource
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
}

// NewCachedPriceSource wraps next. A nil cache disables caching.
func NewCachedPriceSource(next domrepo.PriceSource, c cache.Service, ttl time.Duration, m domrepo.Metrics) *CachedPriceSource {
	return &CachedPriceSource{next: next, cache: c, ttl: ttl, metrics: m}
}

func (s *CachedPriceSource) GetSeries(ctx context.Context, ref models.SeriesRef) (models.HistoricalSeries, error) {
	key := seriesKeyPrefix + cache.HashKey(ref.Key())
	out, hit, err := cache.GetOrLoad(ctx, s.cache, key, s.ttl, func(ctx context.Context) (models.HistoricalSeries, error) {
		return s.next.GetSeries(ctx, ref)
	})
	if err == nil && s.metrics != nil {
		s.metrics.RecordCacheResult("series", hit)
	}
	return out, err
}

// Invalidate drops every cached series.
func (s *CachedPriceSource) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPattern(ctx, cache.BuildPattern(seriesKeyPrefix))
}

// CachedCatalog caches catalog listings.
type CachedCatalog struct {
	next    domrepo.Catalog
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
}

// NewCachedCatalog wraps next. A nil cache disables caching.
func NewCachedCatalog(next domrepo.Catalog, c cache.Service, ttl time.Duration, m domrepo.Metrics) *CachedCatalog {
	return &CachedCatalog{next: next, cache: c, ttl: ttl, metrics: m}
}

func (c *CachedCatalog) Databases(ctx context.Context) ([]string, error) {
	return cached(ctx, c, cache.GenerateKeyWithParams(catalogKeyPrefix+"databases"), func(ctx context.Context) ([]string, error) {
		return c.next.Databases(ctx)
	})
}

func (c *CachedCatalog) Tables(ctx context.Context, database string) ([]string, error) {
	return cached(ctx, c, cache.GenerateKeyWithParams(catalogKeyPrefix+"tables", database), func(ctx context.Context) ([]string, error) {
		return c.next.Tables(ctx, database)
	})
}

func (c *CachedCatalog) Columns(ctx context.Context, database, table string) ([]models.CatalogColumn, error) {
	return cached(ctx, c, cache.GenerateKeyWithParams(catalogKeyPrefix+"columns", database, table), func(ctx context.Context) ([]models.CatalogColumn, error) {
		return c.next.Columns(ctx, database, table)
	})
}

// Invalidate drops every cached listing, e.g. after a table was written.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.DeleteByPattern(ctx, cache.BuildPattern(catalogKeyPrefix))
}

func cached[T any](ctx context.Context, c *CachedCatalog, key string, load func(context.Context) (T, error)) (T, error) {
	v, hit, err := cache.GetOrLoad(ctx, c.cache, key, c.ttl, load)
	if err == nil && c.metrics != nil {
		c.metrics.RecordCacheResult("catalog", hit)
	}
	return v, err
}
