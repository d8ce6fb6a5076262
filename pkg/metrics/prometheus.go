package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	simulations *prometheus.CounterVec
	simDuration *prometheus.HistogramVec
	gridCells   prometheus.Histogram
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	cache       *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on reg
// (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		simulations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksim_simulations_total",
				Help: "Total number of completed simulations",
			},
			[]string{"source"},
		),
		simDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksim_simulation_duration_seconds",
				Help:    "Wall time of a simulation, fetch excluded",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"source"},
		),
		gridCells: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stocksim_simulation_grid_cells",
				Help:    "Number of simulated (day, run) cells per simulation",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksim_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksim_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksim_cache_requests_total",
				Help: "Cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

// RecordSimulation records a finished simulation.
func (r *Recorder) RecordSimulation(source string, days, runs int, d time.Duration) {
	r.simulations.WithLabelValues(source).Inc()
	r.simDuration.WithLabelValues(source).Observe(d.Seconds())
	r.gridCells.Observe(float64((days + 1) * runs))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCacheResult records a cache hit or miss.
func (r *Recorder) RecordCacheResult(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(kind, result).Inc()
}

// Nop discards every metric.
type Nop struct{}

func (Nop) RecordSimulation(string, int, int, time.Duration) {}
func (Nop) RecordError(string)                               {}
func (Nop) RecordLatency(string, float64)                    {}
func (Nop) RecordCacheResult(string, bool)                   {}
