package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockSim/internal/domain/models"
	domrepo "StockSim/internal/domain/repository"
	pkgch "StockSim/pkg/clickhouse"
	applogger "StockSim/pkg/logger"
)

// Column layout of tables written by WriteSeries.
const (
	SeriesDateColumn   = "date"
	SeriesCloseColumn  = "close"
	seriesSymbolColumn = "symbol"
)

// tableWriter is the part of the ClickHouse client used to replace tables.
type tableWriter interface {
	Exec(ctx context.Context, stmts ...string) error
	InsertRows(ctx context.Context, table string, columns []string, n int, row func(i int) []any) error
}

// CHStore implements PriceSource, SeriesWriter, ResultStore and Catalog on ClickHouse.
type CHStore struct {
	ch *pkgch.Client
	w  tableWriter
	l  *applogger.Logger
}

// NewCHStore creates a ClickHouse backed store.
func NewCHStore(ch *pkgch.Client, l *applogger.Logger) *CHStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHStore{ch: ch, w: ch, l: l}
}

var (
	_ domrepo.PriceSource   = (*CHStore)(nil)
	_ domrepo.SeriesWriter  = (*CHStore)(nil)
	_ domrepo.ResultStore   = (*CHStore)(nil)
	_ domrepo.Catalog       = (*CHStore)(nil)
	_ domrepo.HealthChecker = (*CHStore)(nil)
)

// seriesQuery builds the SELECT for a (date, close) series. Identifiers are
// validated and quoted; the window bounds are bound parameters.
func seriesQuery(ref models.SeriesRef) (string, []any, error) {
	table, err := pkgch.QuoteTable(ref.Database, ref.Table)
	if err != nil {
		return "", nil, errors.Join(domrepo.ErrInvalidIdentifier, err)
	}
	dateCol, err := pkgch.QuoteIdent(ref.DateColumn)
	if err != nil {
		return "", nil, errors.Join(domrepo.ErrInvalidIdentifier, err)
	}
	closeCol, err := pkgch.QuoteIdent(ref.CloseColumn)
	if err != nil {
		return "", nil, errors.Join(domrepo.ErrInvalidIdentifier, err)
	}

	where := []string{dateCol + " IS NOT NULL", closeCol + " IS NOT NULL"}
	var args []any
	if ref.From != nil {
		where = append(where, "toDateTime("+dateCol+") >= ?")
		args = append(args, ref.From.UTC())
	}
	if ref.To != nil {
		where = append(where, "toDateTime("+dateCol+") <= ?")
		args = append(args, ref.To.UTC())
	}

	q := fmt.Sprintf(
		"SELECT toDateTime(%s) AS d, toFloat64(%s) AS c FROM %s WHERE %s ORDER BY d ASC",
		dateCol, closeCol, table, strings.Join(where, " AND "),
	)
	return q, args, nil
}

// GetSeries reads the caller-chosen date and close columns ordered by date.
func (s *CHStore) GetSeries(ctx context.Context, ref models.SeriesRef) (models.HistoricalSeries, error) {
	start := time.Now()
	q, args, err := seriesQuery(ref)
	if err != nil {
		return models.HistoricalSeries{}, err
	}

	rows, err := s.ch.DB().QueryContext(ctx, q, args...)
	if err != nil {
		if pkgch.IsNotFound(err) {
			return models.HistoricalSeries{}, fmt.Errorf("series %s: %w", ref.Label(), domrepo.ErrNotFound)
		}
		s.l.Error("clickhouse get_series query error",
			applogger.String("table", ref.Label()),
			applogger.Error(err),
		)
		return models.HistoricalSeries{}, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	out := models.HistoricalSeries{Ref: ref, Points: make([]models.PricePoint, 0, 256)}
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return models.HistoricalSeries{}, fmt.Errorf("scan series row: %w", err)
		}
		out.Points = append(out.Points, p)
	}
	if err := rows.Err(); err != nil {
		return models.HistoricalSeries{}, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse get_series ok",
		applogger.String("table", ref.Label()),
		applogger.Int("rows", len(out.Points)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// WriteSeries replaces target with the series as (symbol, date, close) rows.
func (s *CHStore) WriteSeries(ctx context.Context, target models.SaveTarget, series models.HistoricalSeries) (string, error) {
	symbol := series.Ref.Symbol
	ddl := fmt.Sprintf("(%s LowCardinality(String), %s Date, %s Float64) ENGINE = MergeTree ORDER BY (%s, %s)",
		seriesSymbolColumn, SeriesDateColumn, SeriesCloseColumn, seriesSymbolColumn, SeriesDateColumn)
	cols := []string{seriesSymbolColumn, SeriesDateColumn, SeriesCloseColumn}

	return s.replaceTable(ctx, target, ddl, cols, len(series.Points), func(i int) []any {
		p := series.Points[i]
		return []any{symbol, p.Date, p.Close}
	})
}

// SaveSimulation replaces target with (day_id, sim_run, sim_close) rows.
func (s *CHStore) SaveSimulation(ctx context.Context, target models.SaveTarget, rows []models.SimulationRow) (string, error) {
	ddl := "(day_id UInt32, sim_run UInt32, sim_close Float64) ENGINE = MergeTree ORDER BY (day_id, sim_run)"
	cols := []string{"day_id", "sim_run", "sim_close"}

	return s.replaceTable(ctx, target, ddl, cols, len(rows), func(i int) []any {
		r := rows[i]
		return []any{uint32(r.Day), uint32(r.Run), r.Close}
	})
}

// replaceTable fills a staging table and swaps it in for target with
// EXCHANGE TABLES, so readers see either the old or the new table. A missing
// target is created by renaming the staging table. The staging table is
// dropped on every exit path.
func (s *CHStore) replaceTable(ctx context.Context, target models.SaveTarget, ddl string, cols []string, n int, row func(int) []any) (string, error) {
	start := time.Now()
	name, err := pkgch.QuoteTable(target.Database, target.Table)
	if err != nil {
		return "", errors.Join(domrepo.ErrInvalidIdentifier, err)
	}
	staging, err := pkgch.QuoteTable(target.Database, stagingName(target.Table))
	if err != nil {
		return "", errors.Join(domrepo.ErrInvalidIdentifier, err)
	}
	dropStaging := func() {
		if err := s.w.Exec(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+staging); err != nil {
			s.l.Warn("clickhouse drop staging table failed", applogger.String("table", staging), applogger.Error(err))
		}
	}

	if err := s.w.Exec(ctx,
		"DROP TABLE IF EXISTS "+staging,
		"CREATE TABLE "+staging+" "+ddl,
	); err != nil {
		if pkgch.IsNotFound(err) {
			return "", fmt.Errorf("database %s: %w", target.Database, domrepo.ErrNotFound)
		}
		return "", fmt.Errorf("create staging table: %w", err)
	}
	if err := s.w.InsertRows(ctx, staging, cols, n, row); err != nil {
		dropStaging()
		return "", err
	}

	err = s.w.Exec(ctx, "EXCHANGE TABLES "+staging+" AND "+name)
	if pkgch.IsNotFound(err) {
		err = s.w.Exec(ctx, "RENAME TABLE "+staging+" TO "+name)
	}
	// after an exchange the staging name holds the previous rows
	dropStaging()
	if err != nil {
		return "", fmt.Errorf("swap table: %w", err)
	}

	full := target.Database + "." + target.Table
	s.l.Info("clickhouse table replaced",
		applogger.String("table", full),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return full, nil
}

func stagingName(table string) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return table + "__staging_" + hex.EncodeToString(b[:])
}

// Health pings ClickHouse.
func (s *CHStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}
