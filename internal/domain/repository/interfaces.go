package repository

import (
	"context"
	"errors"
	"time"

	"StockSim/internal/domain/models"
)

var (
	// ErrNotFound is returned when a series, table or symbol does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidIdentifier is returned for database/table/column names that cannot be quoted safely.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrUnsupportedSource is returned when no PriceSource serves a SeriesRef.Source.
	ErrUnsupportedSource = errors.New("unsupported series source")
)

// PriceSource loads a historical closing-price series.
type PriceSource interface {
	GetSeries(ctx context.Context, ref models.SeriesRef) (models.HistoricalSeries, error)
}

// Catalog lists what a warehouse contains so callers can pick a series.
type Catalog interface {
	Databases(ctx context.Context) ([]string, error)
	Tables(ctx context.Context, database string) ([]string, error)
	Columns(ctx context.Context, database, table string) ([]models.CatalogColumn, error)
}

// ResultStore persists simulation rows. Save overwrites the target table and
// returns its fully qualified name.
type ResultStore interface {
	SaveSimulation(ctx context.Context, target models.SaveTarget, rows []models.SimulationRow) (string, error)
}

// SeriesWriter writes a (date, close) series into a table, replacing it.
type SeriesWriter interface {
	WriteSeries(ctx context.Context, target models.SaveTarget, series models.HistoricalSeries) (string, error)
}

// EventPublisher publishes simulation lifecycle events.
type EventPublisher interface {
	PublishSimulationCompleted(ctx context.Context, ev models.SimulationCompletedEvent) error
	Close() error
}

// HistoryStore keeps a local log of finished simulations.
type HistoryStore interface {
	Record(ctx context.Context, rec models.SimulationRecord) error
	Get(ctx context.Context, id string) (models.SimulationRecord, error)
	List(ctx context.Context, limit int) ([]models.SimulationRecord, error)
	Close() error
}

// Metrics records simulation and infrastructure metrics.
type Metrics interface {
	RecordSimulation(source string, days, runs int, d time.Duration)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordCacheResult(kind string, hit bool)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}
