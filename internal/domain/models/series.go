package models

import (
	"fmt"
	"strings"
	"time"
)

// Series sources.
const (
	SourceClickHouse = "clickhouse"
	SourceYahoo      = "yahoo"
)

// PricePoint is one trading day of a historical series.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// SeriesRef identifies where a historical closing-price series lives.
// For ClickHouse the caller picks database, table, date column and close column;
// for Yahoo only Symbol is used.
type SeriesRef struct {
	Source      string     `json:"source"`
	Database    string     `json:"database,omitempty"`
	Table       string     `json:"table,omitempty"`
	DateColumn  string     `json:"date_column,omitempty"`
	CloseColumn string     `json:"close_column,omitempty"`
	Symbol      string     `json:"symbol,omitempty"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
}

// Key returns a stable identifier usable as a cache key or metric label.
func (r SeriesRef) Key() string {
	var b strings.Builder
	b.WriteString(r.Source)
	switch r.Source {
	case SourceYahoo:
		b.WriteString(":" + strings.ToUpper(r.Symbol))
	default:
		fmt.Fprintf(&b, ":%s.%s:%s:%s", r.Database, r.Table, r.DateColumn, r.CloseColumn)
	}
	if r.From != nil {
		fmt.Fprintf(&b, ":from=%d", r.From.Unix())
	}
	if r.To != nil {
		fmt.Fprintf(&b, ":to=%d", r.To.Unix())
	}
	return b.String()
}

// Label is a short, low-cardinality name for logs and metrics.
func (r SeriesRef) Label() string {
	if r.Source == SourceYahoo {
		return strings.ToUpper(r.Symbol)
	}
	return r.Database + "." + r.Table
}

// HistoricalSeries is an ordered closing-price series, ascending by date.
type HistoricalSeries struct {
	Ref    SeriesRef    `json:"ref"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of rows.
func (s HistoricalSeries) Len() int { return len(s.Points) }

// Closes returns the closing prices in series order.
func (s HistoricalSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Window returns the points between from and to (inclusive); nil bounds are open.
func (s HistoricalSeries) Window(from, to *time.Time) HistoricalSeries {
	if from == nil && to == nil {
		return s
	}
	out := make([]PricePoint, 0, len(s.Points))
	for _, p := range s.Points {
		if from != nil && p.Date.Before(*from) {
			continue
		}
		if to != nil && p.Date.After(*to) {
			continue
		}
		out = append(out, p)
	}
	return HistoricalSeries{Ref: s.Ref, Points: out}
}
