package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSim/internal/domain/models"
	domrepo "StockSim/internal/domain/repository"
	"StockSim/pkg/cache"
	pkgkafka "StockSim/pkg/kafka"
	applogger "StockSim/pkg/logger"
)

func TestSeriesQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ref := models.SeriesRef{
		Source:      models.SourceClickHouse,
		Database:    "market",
		Table:       "STOCK_PRICES",
		DateColumn:  "DATE",
		CloseColumn: "CLOSE",
		From:        &from,
	}

	q, args, err := seriesQuery(ref)
	require.NoError(t, err)
	assert.Contains(t, q, "FROM `market`.`STOCK_PRICES`")
	assert.Contains(t, q, "toFloat64(`CLOSE`) AS c")
	assert.Contains(t, q, "toDateTime(`DATE`) >= ?")
	assert.NotContains(t, q, "<= ?")
	assert.Contains(t, q, "ORDER BY d ASC")
	assert.Equal(t, []any{from}, args)

	ref.CloseColumn = "CLOSE; DROP TABLE x"
	_, _, err = seriesQuery(ref)
	assert.ErrorIs(t, err, domrepo.ErrInvalidIdentifier)
}

func TestStagingName(t *testing.T) {
	a, b := stagingName("SIMS"), stagingName("SIMS")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^SIMS__staging_[0-9a-f]{8}$`, a)
}

type fakeTableWriter struct {
	stmts    []string
	inserted string
	fail     map[string]error
}

func (f *fakeTableWriter) Exec(_ context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		f.stmts = append(f.stmts, stmt)
		for prefix, err := range f.fail {
			if strings.HasPrefix(stmt, prefix) {
				return fmt.Errorf("exec: %w", err)
			}
		}
	}
	return nil
}

func (f *fakeTableWriter) InsertRows(_ context.Context, table string, _ []string, _ int, _ func(int) []any) error {
	f.inserted = table
	return f.fail["INSERT"]
}

func saveRows(t *testing.T, w *fakeTableWriter) (string, error) {
	t.Helper()
	s := &CHStore{w: w, l: applogger.Nop()}
	rows := []models.SimulationRow{{Day: 0, Run: 0, Close: 100}, {Day: 1, Run: 0, Close: 101}}
	return s.SaveSimulation(context.Background(), models.SaveTarget{Database: "sims", Table: "OUT"}, rows)
}

func TestReplaceTable_ExchangesExistingTable(t *testing.T) {
	w := &fakeTableWriter{}
	full, err := saveRows(t, w)
	require.NoError(t, err)
	assert.Equal(t, "sims.OUT", full)

	require.Len(t, w.stmts, 4)
	staging := w.inserted
	assert.Regexp(t, "^`sims`.`OUT__staging_[0-9a-f]{8}`$", staging)
	assert.Equal(t, "CREATE TABLE "+staging, w.stmts[1][:len("CREATE TABLE ")+len(staging)])
	assert.Equal(t, "EXCHANGE TABLES "+staging+" AND `sims`.`OUT`", w.stmts[2])
	assert.Equal(t, "DROP TABLE IF EXISTS "+staging, w.stmts[3])
	for _, stmt := range w.stmts {
		assert.NotEqual(t, "DROP TABLE IF EXISTS `sims`.`OUT`", stmt, "target must never be dropped")
	}
}

func TestReplaceTable_RenamesWhenTargetMissing(t *testing.T) {
	w := &fakeTableWriter{fail: map[string]error{
		"EXCHANGE": &clickhouse.Exception{Code: 60, Message: "Table sims.OUT does not exist"},
	}}
	_, err := saveRows(t, w)
	require.NoError(t, err)

	require.Len(t, w.stmts, 5)
	assert.Equal(t, "RENAME TABLE "+w.inserted+" TO `sims`.`OUT`", w.stmts[3])
	assert.Equal(t, "DROP TABLE IF EXISTS "+w.inserted, w.stmts[4])
}

func TestReplaceTable_DropsStagingOnFailure(t *testing.T) {
	for name, fail := range map[string]map[string]error{
		"insert": {"INSERT": errors.New("too many parts")},
		"swap":   {"EXCHANGE": &clickhouse.Exception{Code: 48, Message: "not supported"}},
	} {
		t.Run(name, func(t *testing.T) {
			w := &fakeTableWriter{fail: fail}
			_, err := saveRows(t, w)
			require.Error(t, err)
			require.NotEmpty(t, w.stmts)
			assert.Equal(t, "DROP TABLE IF EXISTS "+w.inserted, w.stmts[len(w.stmts)-1])
		})
	}
}

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	series models.HistoricalSeries
	err    error
}

func (f *fakeSource) GetSeries(_ context.Context, ref models.SeriesRef) (models.HistoricalSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.HistoricalSeries{}, f.err
	}
	s := f.series
	s.Ref = ref
	return s, nil
}

func TestSourceRouter(t *testing.T) {
	ch := &fakeSource{}
	r := NewSourceRouter().Register(models.SourceClickHouse, ch).Register(models.SourceYahoo, nil)

	_, err := r.GetSeries(context.Background(), models.SeriesRef{Source: models.SourceClickHouse})
	require.NoError(t, err)
	assert.Equal(t, 1, ch.calls)

	_, err = r.GetSeries(context.Background(), models.SeriesRef{Source: models.SourceYahoo})
	assert.ErrorIs(t, err, domrepo.ErrUnsupportedSource)
	assert.Equal(t, []string{models.SourceClickHouse}, r.Sources())
}

type cacheMetrics struct {
	hits, misses int
}

func (m *cacheMetrics) RecordSimulation(string, int, int, time.Duration) {}
func (m *cacheMetrics) RecordError(string)                               {}
func (m *cacheMetrics) RecordLatency(string, float64)                    {}
func (m *cacheMetrics) RecordCacheResult(_ string, hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func TestCachedPriceSource(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{series: models.HistoricalSeries{Points: []models.PricePoint{{Date: day, Close: 100}, {Date: day.AddDate(0, 0, 1), Close: 101}}}}
	m := &cacheMetrics{}
	cs := NewCachedPriceSource(src, mc, time.Minute, m)
	ref := models.SeriesRef{Source: models.SourceYahoo, Symbol: "AAPL"}

	first, err := cs.GetSeries(ctx, ref)
	require.NoError(t, err)
	second, err := cs.GetSeries(ctx, ref)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)

	require.NoError(t, cs.Invalidate(ctx))
	_, err = cs.GetSeries(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCachedPriceSource_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()

	src := &fakeSource{err: domrepo.ErrNotFound}
	cs := NewCachedPriceSource(src, mc, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := cs.GetSeries(ctx, models.SeriesRef{Source: models.SourceYahoo, Symbol: "NOPE"})
		assert.ErrorIs(t, err, domrepo.ErrNotFound)
	}
	assert.Equal(t, 2, src.calls)
}

type fakeCatalog struct {
	calls int
}

func (f *fakeCatalog) Databases(context.Context) ([]string, error) {
	f.calls++
	return []string{"market"}, nil
}

func (f *fakeCatalog) Tables(_ context.Context, db string) ([]string, error) {
	f.calls++
	if db != "market" {
		return nil, domrepo.ErrNotFound
	}
	return []string{"PRICES"}, nil
}

func (f *fakeCatalog) Columns(context.Context, string, string) ([]models.CatalogColumn, error) {
	f.calls++
	return []models.CatalogColumn{{Name: "DATE", Type: "Date"}, {Name: "CLOSE", Type: "Float64"}}, nil
}

func TestCachedCatalog(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()

	fc := &fakeCatalog{}
	cc := NewCachedCatalog(fc, mc, time.Minute, nil)

	for i := 0; i < 3; i++ {
		dbs, err := cc.Databases(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"market"}, dbs)

		cols, err := cc.Columns(ctx, "market", "PRICES")
		require.NoError(t, err)
		assert.Len(t, cols, 2)
	}
	assert.Equal(t, 2, fc.calls)

	_, err := cc.Tables(ctx, "missing")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	require.NoError(t, cc.Invalidate(ctx))
	_, _ = cc.Databases(ctx)
	assert.Equal(t, 4, fc.calls)

	uncached := NewCachedCatalog(fc, nil, time.Minute, nil)
	_, _ = uncached.Databases(ctx)
	_, _ = uncached.Databases(ctx)
	assert.Equal(t, 6, fc.calls)
}

func TestSQLiteHistory(t *testing.T) {
	ctx := context.Background()
	h, err := NewSQLiteHistory(":memory:")
	require.NoError(t, err)
	defer h.Close()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Record(ctx, models.SimulationRecord{
			ID:        id,
			Trigger:   models.TriggerHTTP,
			Series:    models.SeriesRef{Source: models.SourceYahoo, Symbol: "AAPL"},
			Seed:      ^uint64(0),
			Days:      10,
			Runs:      5,
			Summary:   models.SimulationSummary{ExpectedClose: 100 + float64(i), Scope: models.ScopeAll},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	rec, err := h.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 101.0, rec.Summary.ExpectedClose)
	assert.Equal(t, ^uint64(0), rec.Seed)
	assert.Equal(t, "AAPL", rec.Series.Symbol)

	_, err = h.Get(ctx, "zzz")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	list, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	n, err := h.Prune(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err = h.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaPublisher(pkgkafka.NewProducerWithWriter(w, "gzip", nil), "sims.completed")

	ev := models.SimulationCompletedEvent{SimulationRecord: models.SimulationRecord{ID: "sim-1", Days: 10, Runs: 3}}
	require.NoError(t, pub.PublishSimulationCompleted(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "sims.completed", w.msgs[0].Topic)
	assert.Equal(t, "sim-1", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"id":"sim-1"`)
	assert.Contains(t, string(w.msgs[0].Value), `"n_days":10`)
	assert.Contains(t, string(w.msgs[0].Value), `"timestamp":`)

	w.err = errors.New("down")
	assert.Error(t, pub.PublishSimulationCompleted(context.Background(), ev))
	assert.NoError(t, NoopPublisher{}.PublishSimulationCompleted(context.Background(), ev))
}
