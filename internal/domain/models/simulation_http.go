package models

import (
	"encoding/json"
	"fmt"
	"time"

	"StockSim/pkg/util"

	"github.com/creasty/defaults"
)

// Requests for the simulation HTTP endpoints. Defined in domain so the Kafka job
// handler and the CLI can reuse the same validation rules.

// SeriesQuery selects a historical series.
type SeriesQuery struct {
	Source      string `query:"source" json:"source" default:"clickhouse" validate:"oneof=clickhouse yahoo"`
	Database    string `query:"database" json:"database" validate:"required_if=Source clickhouse,omitempty,max=128"`
	Table       string `query:"table" json:"table" validate:"required_if=Source clickhouse,omitempty,max=128"`
	DateColumn  string `query:"date_column" json:"date_column" validate:"required_if=Source clickhouse,omitempty,max=128"`
	CloseColumn string `query:"close_column" json:"close_column" validate:"required_if=Source clickhouse,omitempty,max=128"`
	Symbol      string `query:"symbol" json:"symbol" validate:"required_if=Source yahoo,omitempty,max=32"`
	From        string `query:"from" json:"from,omitempty"`
	To          string `query:"to" json:"to,omitempty"`
}

// Ref converts the query into a SeriesRef. From/To accept RFC3339 or unix seconds.
func (q SeriesQuery) Ref() (SeriesRef, error) {
	ref := SeriesRef{
		Source:      q.Source,
		Database:    q.Database,
		Table:       q.Table,
		DateColumn:  q.DateColumn,
		CloseColumn: q.CloseColumn,
		Symbol:      q.Symbol,
	}
	if q.From != "" {
		t, ok := util.ParseTime(q.From)
		if !ok {
			return ref, fmt.Errorf("invalid from %q", q.From)
		}
		ref.From = &t
	}
	if q.To != "" {
		t, ok := util.ParseTime(q.To)
		if !ok {
			return ref, fmt.Errorf("invalid to %q", q.To)
		}
		ref.To = &t
	}
	if ref.From != nil && ref.To != nil && ref.From.After(*ref.To) {
		return ref, fmt.Errorf("from must be <= to")
	}
	return ref, nil
}

// SaveTarget names the table that receives simulation rows (overwritten).
type SaveTarget struct {
	Database string `json:"database" validate:"required,max=128"`
	Table    string `json:"table" default:"STOCK_PRICE_SIMULATIONS" validate:"required,max=128"`
}

// UnmarshalJSON fills defaults before decoding so an optional save block
// gets the default table.
func (t *SaveTarget) UnmarshalJSON(b []byte) error {
	type plain SaveTarget
	p := plain(*t)
	if err := defaults.Set(&p); err != nil {
		return err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = SaveTarget(p)
	return nil
}

// SimulationRequest is the body of POST /api/simulations and of a Kafka simulation job.
type SimulationRequest struct {
	SeriesQuery
	Days         int         `query:"n_days" json:"n_days" default:"100" validate:"gte=1,lte=1000"`
	Runs         int         `query:"n_sim_runs" json:"n_sim_runs" default:"20" validate:"gte=1,lte=100"`
	Seed         *uint64     `json:"seed,omitempty"`
	Scope        string      `query:"scope" json:"scope" validate:"omitempty,oneof=all terminal"`
	IncludePaths bool        `query:"include_paths" json:"include_paths"`
	Save         *SaveTarget `json:"save,omitempty"`
}

// SimulationResponse is returned by the simulation endpoints.
type SimulationResponse struct {
	ID         string            `json:"id"`
	Seed       uint64            `json:"seed"`
	Series     SeriesRef         `json:"series"`
	Days       int               `json:"n_days"`
	Runs       int               `json:"n_sim_runs"`
	Statistics ReturnStatistics  `json:"statistics"`
	Summary    SimulationSummary `json:"summary"`
	Rows       []SimulationRow   `json:"rows,omitempty"`
	SavedTo    string            `json:"saved_to,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SeriesResponse is returned by GET /api/series.
type SeriesResponse struct {
	Series SeriesRef    `json:"series"`
	Count  int          `json:"count"`
	Points []PricePoint `json:"points"`
}

// CatalogRequest is the query of the catalog endpoints.
type CatalogRequest struct {
	Database string `query:"database" json:"database" validate:"omitempty,max=128"`
	Table    string `query:"table" json:"table" validate:"omitempty,max=128"`
}

// CatalogResponse lists one level of the warehouse: databases, the tables of
// a database, or the columns of a table.
type CatalogResponse struct {
	Database  string          `json:"database,omitempty"`
	Table     string          `json:"table,omitempty"`
	Databases []string        `json:"databases,omitempty"`
	Tables    []string        `json:"tables,omitempty"`
	Columns   []CatalogColumn `json:"columns,omitempty"`
}

// SeedRequest generates a synthetic series and writes it to a table.
type SeedRequest struct {
	Target     SaveTarget `json:"target"`
	Symbol     string     `json:"symbol" default:"DEMO" validate:"max=32"`
	Start      string     `json:"start,omitempty"`
	Days       int        `json:"days" default:"252" validate:"gte=2,lte=10000"`
	StartPrice float64    `json:"start_price" default:"100" validate:"gt=0"`
	Drift      float64    `json:"drift" default:"0.0003"`
	Volatility float64    `json:"volatility" default:"0.015" validate:"gte=0,lte=1"`
	Seed       uint64     `json:"seed" default:"42"`
	Exchange   string     `json:"exchange" default:"xnys" validate:"max=8"`
}

// HistoryRequest is the query of GET /api/simulations.
type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

// SimulationIDRequest addresses one past simulation.
type SimulationIDRequest struct {
	ID string `param:"id" json:"id" validate:"required,uuid"`
}

// JobAccepted acknowledges a simulation request queued for background processing.
type JobAccepted struct {
	JobID string `json:"job_id"`
	Type  string `json:"type"`
}
