package di

import (
	"context"
	"fmt"
	"runtime"

	"StockSim/internal/domain/models"
	"StockSim/internal/domain/repository"
	"StockSim/internal/handler/api"
	internalrepo "StockSim/internal/repository"
	"StockSim/internal/service/ratelimit"
	"StockSim/internal/service/yahoo"
	"StockSim/internal/services/montecarlo"
	"StockSim/internal/usecase"
	"StockSim/pkg/cache"
	pkgch "StockSim/pkg/clickhouse"
	"StockSim/pkg/config"
	xhttp "StockSim/pkg/http"
	"StockSim/pkg/http/middleware"
	pkgkafka "StockSim/pkg/kafka"
	applogger "StockSim/pkg/logger"
	"StockSim/pkg/metrics"
	"StockSim/pkg/queue"
	"StockSim/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(reg)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithInsertChunk(cfg.ClickHouse.InsertChunk),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCHStore wraps the client in the series, catalog and result store.
func ProvideCHStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHStore(ch, l)
}

// ProvideRedisCache connects to Redis, or returns nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.Pool.Size, cfg.Redis.Pool.MinIdle, cfg.Redis.Pool.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache creates the cache: memory only, or memory in front of Redis.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize))
}

// ProvideYahoo creates the Yahoo Finance chart client, or nil when disabled.
func ProvideYahoo(cfg *config.Config) *yahoo.Client {
	if !cfg.Yahoo.Enabled {
		return nil
	}
	return yahoo.New(cfg.Yahoo.BaseURL, cfg.Yahoo.Range,
		xhttp.WithTimeout(cfg.Yahoo.Timeout),
		xhttp.WithUserAgent(cfg.Yahoo.UserAgent),
		xhttp.WithRateLimit(cfg.Yahoo.RPS),
	)
}

// ProvidePriceSource routes series requests by source and caches them.
func ProvidePriceSource(cfg *config.Config, store *internalrepo.CHStore, yc *yahoo.Client, c cache.Service, m repository.Metrics) *internalrepo.CachedPriceSource {
	router := internalrepo.NewSourceRouter()
	if store != nil {
		router.Register(models.SourceClickHouse, store)
	}
	if yc != nil {
		router.Register(models.SourceYahoo, yc)
	}
	return internalrepo.NewCachedPriceSource(router, c, cfg.Cache.SeriesTTL, m)
}

// ProvideCatalog caches catalog listings, or nil without ClickHouse.
func ProvideCatalog(cfg *config.Config, store *internalrepo.CHStore, c cache.Service, m repository.Metrics) *internalrepo.CachedCatalog {
	if store == nil {
		return nil
	}
	return internalrepo.NewCachedCatalog(store, c, cfg.Cache.CatalogTTL, m)
}

// ProvideHistory opens the SQLite simulation history, or nil when disabled.
func ProvideHistory(cfg *config.Config) (*internalrepo.SQLiteHistory, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	h, err := internalrepo.NewSQLiteHistory(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return h, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes completion events to Kafka, or drops them.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSimulator creates the Monte Carlo engine with the configured caps.
func ProvideSimulator(cfg *config.Config) *montecarlo.Simulator {
	workers := cfg.Simulation.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return montecarlo.NewSimulator(
		montecarlo.WithWorkers(workers),
		montecarlo.WithLimits(cfg.Simulation.MaxDays, cfg.Simulation.MaxRuns, cfg.Simulation.MaxGridCells),
	)
}

// ProvideSimulationUsecase wires the simulation flow. Optional stores are
// passed as untyped nil so the usecase can tell they are absent.
func ProvideSimulationUsecase(
	cfg *config.Config,
	source *internalrepo.CachedPriceSource,
	store *internalrepo.CHStore,
	history *internalrepo.SQLiteHistory,
	events repository.EventPublisher,
	m repository.Metrics,
	sim *montecarlo.Simulator,
	catalog *internalrepo.CachedCatalog,
	l *applogger.Logger,
) *usecase.SimulationUsecase {
	var (
		results repository.ResultStore
		hist    repository.HistoryStore
		inv     = []usecase.Invalidator{source}
	)
	if store != nil {
		results = store
	}
	if history != nil {
		hist = history
	}
	if catalog != nil {
		inv = append(inv, catalog)
	}
	return usecase.NewSimulationUsecase(source, results, hist, events, m, sim, usecase.SimulationConfig{
		Timeout:      cfg.Simulation.Timeout,
		DefaultScope: models.SummaryScope(cfg.Simulation.DefaultScope),
	}, l, inv...)
}

// ProvideSeedUsecase writes demo series into ClickHouse, or nil without it.
func ProvideSeedUsecase(store *internalrepo.CHStore, source *internalrepo.CachedPriceSource, catalog *internalrepo.CachedCatalog, l *applogger.Logger) *usecase.SeedUsecase {
	if store == nil {
		return nil
	}
	inv := []usecase.Invalidator{source}
	if catalog != nil {
		inv = append(inv, catalog)
	}
	return usecase.NewSeedUsecase(store, l, inv...)
}

// ProvideJobQueue creates the Redis job queue for asynchronous simulation
// requests, or nil when jobs are disabled.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, uc *usecase.SimulationUsecase, l *applogger.Logger) (*queue.RedisQueue, error) {
	if !cfg.Jobs.Enabled || rc == nil {
		return nil, nil
	}
	q := queue.NewRedisQueue(l.With(applogger.String("component", "jobs")), &queue.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		RetryLimit: cfg.Jobs.RetryLimit,
		RetryDelay: cfg.Jobs.RetryDelay,
		Retryable:  usecase.Retryable,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Jobs.KeyPrefix))
	if err := q.RegisterJob(usecase.NewSimulationQueueJob(uc)); err != nil {
		return nil, fmt.Errorf("job queue: %w", err)
	}
	return q, nil
}

// ProvideLimiter creates the per-client simulation rate limiter.
func ProvideLimiter(cfg *config.Config) middleware.Allower {
	if !cfg.Simulation.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.Simulation.RateLimit.Capacity, cfg.Simulation.RateLimit.PerSec)
}

// ProvideHandlers collects every HTTP handler.
func ProvideHandlers(
	store *internalrepo.CHStore,
	history *internalrepo.SQLiteHistory,
	c cache.Service,
	catalog *internalrepo.CachedCatalog,
	uc *usecase.SimulationUsecase,
	jobs *queue.RedisQueue,
	limiter middleware.Allower,
	l *applogger.Logger,
) []xhttp.Handler {
	checks := map[string]repository.HealthChecker{}
	if store != nil {
		checks["clickhouse"] = store
	}
	if hc, ok := c.(repository.HealthChecker); ok {
		checks["cache"] = hc
	}
	if history != nil {
		checks["history"] = history
	}

	sims := api.NewSimulationHandler(l, uc, limiter)
	if jobs != nil {
		sims.SetJobQueue(jobs)
	}
	handlers := []xhttp.Handler{api.NewHealthHandler(checks), sims}
	if catalog != nil {
		handlers = append(handlers, api.NewCatalogHandler(l, usecase.NewCatalogUsecase(catalog)))
	}
	return handlers
}

// ProvideHTTPServer creates the echo server with logging, metrics and CORS.
func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, cfg.Metrics.SlowThreshold, reg))
	} else {
		opts = append(opts, xhttp.WithMetrics("", 0, nil))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideKafkaConsumer creates the simulation job consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l)))
	return consumer, nil
}

// ProvideSimulationJobHandler handles simulation jobs from the consumer topic.
func ProvideSimulationJobHandler(cfg *config.Config, uc *usecase.SimulationUsecase) *usecase.SimulationJobHandler {
	return usecase.NewSimulationJobHandler(cfg.Kafka.Consumer.Topic, uc)
}

// ProvideScheduler registers configured simulations and history pruning.
// Runs are locked through the cache, so with Redis only one instance
// executes each tick. It returns nil when there is nothing to schedule.
func ProvideScheduler(cfg *config.Config, uc *usecase.SimulationUsecase, history *internalrepo.SQLiteHistory, c cache.Service, l *applogger.Logger) (*usecase.Scheduler, error) {
	jobs, err := usecase.ParseSchedules(context.Background(), cfg.Simulation.Schedules)
	if err != nil {
		return nil, err
	}
	s := usecase.NewScheduler(uc, l)
	if c != nil {
		s.SetLocker(c, cfg.Simulation.ScheduleLock)
	}
	for _, job := range jobs {
		if err := s.AddSimulation(job); err != nil {
			return nil, err
		}
	}
	if history != nil && cfg.History.Retention > 0 && cfg.History.PruneCron != "" {
		if err := s.AddPrune(cfg.History.PruneCron, history, cfg.History.Retention); err != nil {
			return nil, err
		}
	}
	if s.Len() == 0 {
		return nil, nil
	}
	return s, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	jobs *usecase.SimulationJobHandler,
	scheduler *usecase.Scheduler,
	jobQueue *queue.RedisQueue,
	events repository.EventPublisher,
	history *internalrepo.SQLiteHistory,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	opts := []server.Option{
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithClosers(closers(events, history, ch, c)...),
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, jobs))
	}
	if scheduler != nil {
		opts = append(opts, server.WithScheduler(scheduler))
	}
	if jobQueue != nil {
		opts = append(opts, server.WithJobQueue(jobQueue))
	}
	return server.New(l, httpServer, opts...)
}

// CLI holds what the one-shot commands need.
type CLI struct {
	Logger     *applogger.Logger
	Simulation *usecase.SimulationUsecase
	Seed       *usecase.SeedUsecase
	closers    []server.Closer
}

// Close releases the clients opened for the command.
func (c *CLI) Close() {
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			c.Logger.Warn("close error", applogger.String("component", cl.Name), applogger.Error(err))
		}
	}
}

// ProvideCLI bundles the usecases for the simulate and seed commands.
func ProvideCLI(
	l *applogger.Logger,
	sim *usecase.SimulationUsecase,
	seed *usecase.SeedUsecase,
	events repository.EventPublisher,
	history *internalrepo.SQLiteHistory,
	ch *pkgch.Client,
	c cache.Service,
) *CLI {
	return &CLI{Logger: l, Simulation: sim, Seed: seed, closers: closers(events, history, ch, c)}
}

// closers lists clients in shutdown order: producers first, stores last.
func closers(events repository.EventPublisher, history *internalrepo.SQLiteHistory, ch *pkgch.Client, c cache.Service) []server.Closer {
	out := []server.Closer{{Name: "events", Close: events.Close}}
	if history != nil {
		out = append(out, server.Closer{Name: "history", Close: history.Close})
	}
	if ch != nil {
		out = append(out, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	if c != nil {
		out = append(out, server.Closer{Name: "cache", Close: c.Close})
	}
	return out
}
