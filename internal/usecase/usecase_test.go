package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"StockSim/internal/domain/models"
	drepo "StockSim/internal/domain/repository"
	"StockSim/internal/services/montecarlo"
	"StockSim/pkg/cache"
	"StockSim/pkg/config"
	xhttp "StockSim/pkg/http"
	pkgkafka "StockSim/pkg/kafka"
	"StockSim/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	series models.HistoricalSeries
	err    error
	calls  int
}

func (f *fakeSource) GetSeries(_ context.Context, ref models.SeriesRef) (models.HistoricalSeries, error) {
	f.calls++
	if f.err != nil {
		return models.HistoricalSeries{}, f.err
	}
	s := f.series
	s.Ref = ref
	return s, nil
}

type fakeResults struct {
	target models.SaveTarget
	rows   []models.SimulationRow
	err    error
}

func (f *fakeResults) SaveSimulation(_ context.Context, t models.SaveTarget, rows []models.SimulationRow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.target, f.rows = t, rows
	return t.Database + "." + t.Table, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []models.SimulationRecord
	err     error
	pruned  time.Time
}

func (f *fakeHistory) Record(_ context.Context, rec models.SimulationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) Get(_ context.Context, id string) (models.SimulationRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.SimulationRecord{}, drepo.ErrNotFound
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]models.SimulationRecord, error) {
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

func (f *fakeHistory) Prune(_ context.Context, before time.Time) (int64, error) {
	f.pruned = before
	return 3, nil
}

func (f *fakeHistory) Close() error { return nil }

type fakeEvents struct {
	events []models.SimulationCompletedEvent
	err    error
}

func (f *fakeEvents) PublishSimulationCompleted(_ context.Context, ev models.SimulationCompletedEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeEvents) Close() error { return nil }

type fakeInvalidator struct{ n int }

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.n++
	return nil
}

func series(closes ...float64) models.HistoricalSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		pts[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return models.HistoricalSeries{Points: pts}
}

func chRequest(days, runs int) models.SimulationRequest {
	seed := uint64(7)
	return models.SimulationRequest{
		SeriesQuery: models.SeriesQuery{
			Source:      models.SourceClickHouse,
			Database:    "market",
			Table:       "prices",
			DateColumn:  "date",
			CloseColumn: "close",
		},
		Days:  days,
		Runs:  runs,
		Seed:  &seed,
		Scope: "all",
	}
}

type fixture struct {
	src     *fakeSource
	results *fakeResults
	history *fakeHistory
	events  *fakeEvents
	inv     *fakeInvalidator
	uc      *SimulationUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		src:     &fakeSource{series: series(100, 101, 99.5, 102, 103.2, 101.8)},
		results: &fakeResults{},
		history: &fakeHistory{},
		events:  &fakeEvents{},
		inv:     &fakeInvalidator{},
	}
	sim := montecarlo.NewSimulator(montecarlo.WithLimits(1000, 100, 100100), montecarlo.WithWorkers(2))
	f.uc = NewSimulationUsecase(f.src, f.results, f.history, f.events, metrics.Nop{}, sim,
		SimulationConfig{Timeout: time.Second}, nil, f.inv)
	return f
}

func TestParams_DefaultScope(t *testing.T) {
	sim := montecarlo.NewSimulator(montecarlo.WithLimits(1000, 100, 100100))
	uc := NewSimulationUsecase(&fakeSource{}, nil, &fakeHistory{}, nil, metrics.Nop{}, sim,
		SimulationConfig{DefaultScope: models.ScopeTerminal}, nil)

	var req models.SimulationRequest
	require.Nil(t, xhttp.DecodeAndValidate(context.Background(), []byte(`{"source":"yahoo","symbol":"SPX"}`), &req))
	p := uc.Params(req)
	assert.Equal(t, models.ScopeTerminal, p.Scope)
	assert.Equal(t, 100, p.Days)
	assert.Equal(t, 20, p.Runs)

	req.Scope = string(models.ScopeAll)
	assert.Equal(t, models.ScopeAll, uc.Params(req).Scope)
}

func TestSimulate_RecordsAndPublishes(t *testing.T) {
	f := newFixture(t)

	out, err := f.uc.Simulate(context.Background(), chRequest(5, 4), models.TriggerHTTP)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), out.Record.Seed)
	assert.Equal(t, 5, out.Record.Days)
	assert.Equal(t, 4, out.Record.Runs)
	assert.Equal(t, models.TriggerHTTP, out.Record.Trigger)
	assert.Empty(t, out.Record.SavedTo)
	assert.Len(t, out.Result.Paths, 4)

	require.Len(t, f.history.records, 1)
	assert.Equal(t, out.Record.ID, f.history.records[0].ID)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, out.Record.ID, f.events.events[0].ID)
	assert.False(t, f.events.events[0].Timestamp.IsZero())
	assert.Zero(t, f.inv.n)
}

func TestSimulate_SameSeedSameSummary(t *testing.T) {
	f := newFixture(t)
	a, err := f.uc.Simulate(context.Background(), chRequest(10, 8), models.TriggerHTTP)
	require.NoError(t, err)
	b, err := f.uc.Simulate(context.Background(), chRequest(10, 8), models.TriggerHTTP)
	require.NoError(t, err)
	assert.Equal(t, a.Record.Summary, b.Record.Summary)
	assert.NotEqual(t, a.Record.ID, b.Record.ID)
}

func TestSimulate_SaveWritesRowsAndInvalidates(t *testing.T) {
	f := newFixture(t)
	req := chRequest(3, 2)
	req.Save = &models.SaveTarget{Database: "sims", Table: "OUT"}

	out, err := f.uc.Simulate(context.Background(), req, models.TriggerHTTP)
	require.NoError(t, err)
	assert.Equal(t, "sims.OUT", out.Record.SavedTo)
	assert.Len(t, f.results.rows, (3+1)*2)
	assert.Equal(t, 1, f.inv.n)
}

func TestSimulate_SaveWithoutStore(t *testing.T) {
	f := newFixture(t)
	uc := NewSimulationUsecase(f.src, nil, nil, nil, nil, montecarlo.NewSimulator(), SimulationConfig{}, nil)
	req := chRequest(3, 2)
	req.Save = &models.SaveTarget{Database: "sims", Table: "OUT"}

	_, err := uc.Simulate(context.Background(), req, models.TriggerHTTP)
	assert.ErrorIs(t, err, ErrSaveUnavailable)
	assert.Zero(t, f.src.calls)
}

func TestSimulate_ValidatesBeforeFetching(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Simulate(context.Background(), chRequest(5, 500), models.TriggerHTTP)
	assert.ErrorIs(t, err, montecarlo.ErrInvalidInput)
	assert.Zero(t, f.src.calls)

	req := chRequest(5, 2)
	req.From = "nonsense"
	_, err = f.uc.Simulate(context.Background(), req, models.TriggerHTTP)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, f.src.calls)
}

func TestSimulate_SourceErrors(t *testing.T) {
	f := newFixture(t)
	f.src.err = drepo.ErrNotFound
	_, err := f.uc.Simulate(context.Background(), chRequest(5, 2), models.TriggerHTTP)
	assert.ErrorIs(t, err, drepo.ErrNotFound)
	assert.Empty(t, f.history.records)

	f.src.err = nil
	f.src.series = series(100)
	_, err = f.uc.Simulate(context.Background(), chRequest(5, 2), models.TriggerHTTP)
	assert.ErrorIs(t, err, montecarlo.ErrInsufficientData)
}

func TestSimulate_SideEffectFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)
	f.history.err = errors.New("disk full")
	f.events.err = errors.New("broker down")

	out, err := f.uc.Simulate(context.Background(), chRequest(2, 2), models.TriggerHTTP)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Record.ID)
}

func TestOutcome_Response(t *testing.T) {
	f := newFixture(t)
	out, err := f.uc.Simulate(context.Background(), chRequest(2, 3), models.TriggerHTTP)
	require.NoError(t, err)

	assert.Nil(t, out.Response(false).Rows)
	resp := out.Response(true)
	assert.Len(t, resp.Rows, 9)
	assert.Equal(t, out.Record.Summary, resp.Summary)
}

func TestHistoryLookups(t *testing.T) {
	f := newFixture(t)
	out, err := f.uc.Simulate(context.Background(), chRequest(2, 2), models.TriggerHTTP)
	require.NoError(t, err)

	rec, err := f.uc.GetSimulation(context.Background(), out.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Record.ID, rec.ID)

	_, err = f.uc.GetSimulation(context.Background(), "missing")
	assert.ErrorIs(t, err, drepo.ErrNotFound)

	list, err := f.uc.ListSimulations(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	bare := NewSimulationUsecase(f.src, nil, nil, nil, nil, montecarlo.NewSimulator(), SimulationConfig{}, nil)
	_, err = bare.ListSimulations(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestSeries(t *testing.T) {
	f := newFixture(t)
	resp, err := f.uc.Series(context.Background(), chRequest(1, 1).SeriesQuery)
	require.NoError(t, err)
	assert.Equal(t, 6, resp.Count)
	assert.Equal(t, "prices", resp.Series.Table)
}

func TestErrorKindAndRetryable(t *testing.T) {
	cases := []struct {
		err       error
		kind      string
		retryable bool
	}{
		{montecarlo.ErrInvalidInput, "invalid_input", false},
		{montecarlo.ErrGridTooLarge, "grid_too_large", false},
		{drepo.ErrNotFound, "not_found", false},
		{drepo.ErrUnsupportedSource, "unsupported_source", false},
		{context.DeadlineExceeded, "timeout", true},
		{errors.New("connection reset"), "internal", true},
		{ErrSaveUnavailable, "internal", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, ErrorKind(tc.err), tc.err.Error())
		assert.Equal(t, tc.retryable, Retryable(tc.err), tc.err.Error())
	}
}

type fakeCatalog struct{}

func (fakeCatalog) Databases(context.Context) ([]string, error) {
	return []string{"default", "market"}, nil
}
func (fakeCatalog) Tables(_ context.Context, db string) ([]string, error) {
	if db != "market" {
		return nil, drepo.ErrNotFound
	}
	return []string{"prices"}, nil
}
func (fakeCatalog) Columns(context.Context, string, string) ([]models.CatalogColumn, error) {
	return []models.CatalogColumn{{Name: "date", Type: "Date"}, {Name: "close", Type: "Float64"}}, nil
}

func TestCatalogUsecase_List(t *testing.T) {
	uc := NewCatalogUsecase(fakeCatalog{})
	ctx := context.Background()

	resp, err := uc.List(ctx, models.CatalogRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "market"}, resp.Databases)

	resp, err = uc.List(ctx, models.CatalogRequest{Database: "market"})
	require.NoError(t, err)
	assert.Equal(t, []string{"prices"}, resp.Tables)

	resp, err = uc.List(ctx, models.CatalogRequest{Database: "market", Table: "prices"})
	require.NoError(t, err)
	assert.Len(t, resp.Columns, 2)

	_, err = uc.List(ctx, models.CatalogRequest{Database: "nope"})
	assert.ErrorIs(t, err, drepo.ErrNotFound)

	_, err = uc.List(ctx, models.CatalogRequest{Table: "prices"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

type fakeWriter struct {
	target models.SaveTarget
	series models.HistoricalSeries
}

func (f *fakeWriter) WriteSeries(_ context.Context, t models.SaveTarget, s models.HistoricalSeries) (string, error) {
	f.target, f.series = t, s
	return t.Database + "." + t.Table, nil
}

func TestSeedUsecase(t *testing.T) {
	w := &fakeWriter{}
	inv := &fakeInvalidator{}
	uc := NewSeedUsecase(w, nil, inv)

	table, s, err := uc.Seed(context.Background(), models.SeedRequest{
		Target:     models.SaveTarget{Database: "market", Table: "demo"},
		Symbol:     "demo",
		Start:      "2024-01-02",
		Days:       20,
		StartPrice: 50,
		Volatility: 0.01,
		Seed:       1,
		Exchange:   "xnys",
	})
	require.NoError(t, err)
	assert.Equal(t, "market.demo", table)
	assert.Equal(t, 20, s.Len())
	assert.Equal(t, "DEMO", s.Ref.Symbol)
	assert.Equal(t, 50.0, w.series.Points[0].Close)
	assert.Equal(t, 1, inv.n)

	_, _, err = uc.Seed(context.Background(), models.SeedRequest{Days: 1, StartPrice: 50})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, _, err = uc.Seed(context.Background(), models.SeedRequest{Days: 300, StartPrice: 50, Volatility: 5})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	verrs := xhttp.ValidateRequest(context.Background(), &models.SeedRequest{
		Target: models.SaveTarget{Database: "market", Table: "demo"}, Days: 300, StartPrice: 50, Volatility: 5,
	})
	require.Len(t, verrs, 1)
	assert.Equal(t, "volatility", verrs[0].Field)
	assert.Equal(t, "ERR_LTE", verrs[0].Code)
}

func TestSimulationJobHandler(t *testing.T) {
	f := newFixture(t)
	h := NewSimulationJobHandler("jobs", f.uc)
	assert.Equal(t, "jobs", h.Topic())

	body, err := json.Marshal(chRequest(3, 2))
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), body))
	require.Len(t, f.history.records, 1)
	assert.Equal(t, models.TriggerKafka, f.history.records[0].Trigger)

	err = h.Handle(context.Background(), []byte("{"))
	assert.True(t, pkgkafka.IsPermanent(err))

	err = h.Handle(context.Background(), []byte(`{"source":"clickhouse","n_days":3,"n_sim_runs":2}`))
	assert.True(t, pkgkafka.IsPermanent(err), "missing table must not be retried")

	err = h.Handle(context.Background(), []byte(`{"source":"yahoo","symbol":"SPX","n_days":0}`))
	assert.True(t, pkgkafka.IsPermanent(err), "explicit zero days must be rejected")
	require.Len(t, f.history.records, 1)

	f.src.err = errors.New("connection reset")
	err = h.Handle(context.Background(), body)
	require.Error(t, err)
	assert.False(t, pkgkafka.IsPermanent(err))
}

func TestSimulationQueueJob(t *testing.T) {
	f := newFixture(t)
	job := NewSimulationQueueJob(f.uc)
	assert.Equal(t, QueueJobType, job.Type())

	body, err := json.Marshal(chRequest(3, 2))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), body))
	require.Len(t, f.history.records, 1)
	assert.Equal(t, models.TriggerQueue, f.history.records[0].Trigger)

	err = job.Handle(context.Background(), json.RawMessage(`{"n_days":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, Retryable(err))

	f.src.err = errors.New("connection reset")
	err = job.Handle(context.Background(), body)
	require.Error(t, err)
	assert.True(t, Retryable(err))
}

func TestParseSchedules(t *testing.T) {
	jobs, err := ParseSchedules(context.Background(), []config.Schedule{{
		Name: "nightly",
		Cron: "0 0 22 * * 1-5",
		Request: map[string]any{
			"source":     "yahoo",
			"symbol":     "SPX",
			"n_days":     30,
			"n_sim_runs": 50,
		},
	}})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "nightly", jobs[0].Name)
	assert.Equal(t, "SPX", jobs[0].Request.Symbol)
	assert.Equal(t, 30, jobs[0].Request.Days)
	assert.Empty(t, jobs[0].Request.Scope, "scope is left to simulation.default_scope")

	_, err = ParseSchedules(context.Background(), []config.Schedule{{
		Cron:    "* * * * * *",
		Request: map[string]any{"source": "yahoo", "symbol": "X", "n_sim_runs": 0},
	}})
	assert.Error(t, err, "explicit zero runs must not fall back to the default")

	_, err = ParseSchedules(context.Background(), []config.Schedule{{
		Cron:    "* * * * * *",
		Request: map[string]any{"source": "yahoo", "n_days": 5000, "n_sim_runs": 1, "symbol": "X"},
	}})
	assert.Error(t, err)
}

func TestScheduler(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.uc, nil)

	require.NoError(t, s.AddSimulation(ScheduledJob{Name: "a", Spec: "0 0 * * * *", Request: chRequest(2, 2)}))
	assert.Error(t, s.AddSimulation(ScheduledJob{Name: "a", Spec: "0 0 * * * *", Request: chRequest(2, 2)}))
	assert.Error(t, s.AddSimulation(ScheduledJob{Name: "b", Spec: "not a spec"}))
	require.NoError(t, s.AddPrune("0 0 3 * * *", f.history, 24*time.Hour))
	assert.Error(t, s.AddPrune("0 0 3 * * *", f.history, 0))
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.RunNow(context.Background(), "a"))
	require.Len(t, f.history.records, 1)
	assert.Equal(t, models.TriggerSchedule, f.history.records[0].Trigger)

	require.NoError(t, s.RunNow(context.Background(), "history-prune"))
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), f.history.pruned, time.Minute)

	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrUnknownJob)

	s.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_LockSkipsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.uc, nil)
	locks := cache.NewMemoryCache()
	s.SetLocker(locks, time.Minute)

	runs := 0
	job := func(context.Context) error { runs++; return nil }

	s.run("a", job)
	assert.Equal(t, 1, runs)

	held, err := locks.TryLock(context.Background(), "schedule:a", time.Minute)
	require.NoError(t, err)
	require.True(t, held, "lock is released after a run")

	s.run("a", job)
	assert.Equal(t, 1, runs, "run skipped while another holder has the lock")
}
