package models

import "time"

// ReturnStatistics describes the daily log-return distribution of a series.
// Drift = Mean - 0.5*Variance. Variance is the sample (n-1) variance.
type ReturnStatistics struct {
	Mean         float64 `json:"mean_log_return"`
	Variance     float64 `json:"variance_log_return"`
	StdDev       float64 `json:"stddev_log_return"`
	Drift        float64 `json:"drift"`
	LastClose    float64 `json:"last_close"`
	Observations int     `json:"observations"`
}

// SimulatedPath is one simulation run: Closes[k] is the simulated close on day k.
type SimulatedPath struct {
	Run    int       `json:"sim_run"`
	Closes []float64 `json:"closes"`

	// Returns[k] is the daily return applied on day k (Returns[0] == 1).
	Returns []float64 `json:"-"`
}

// Days returns the horizon of the path (number of simulated days, excluding day 0).
func (p SimulatedPath) Days() int { return len(p.Closes) - 1 }

// Terminal returns the close on the last simulated day.
func (p SimulatedPath) Terminal() float64 { return p.Closes[len(p.Closes)-1] }

// ReturnsThrough returns every daily return seen up to and including day k.
// The slice aliases the path's returns and must not be modified.
func (p SimulatedPath) ReturnsThrough(k int) []float64 {
	if k < 0 {
		return nil
	}
	if k >= len(p.Returns) {
		k = len(p.Returns) - 1
	}
	return p.Returns[:k+1]
}

// SummaryScope selects which simulated closes feed the summary.
type SummaryScope string

const (
	// ScopeAll uses every day of every path, including the day-0 anchor.
	ScopeAll SummaryScope = "all"
	// ScopeTerminal uses only the last day of every path.
	ScopeTerminal SummaryScope = "terminal"
)

// SimulationSummary is the presentation view of a simulation.
type SimulationSummary struct {
	ExpectedClose float64      `json:"expected_close"`
	Quantile05    float64      `json:"quantile_05"`
	Quantile95    float64      `json:"quantile_95"`
	Scope         SummaryScope `json:"scope"`
	Observations  int          `json:"observations"`
}

// SimulationRow is one (day, run, close) triple, the export shape of a simulation.
type SimulationRow struct {
	Day   int     `json:"day_id"`
	Run   int     `json:"sim_run"`
	Close float64 `json:"sim_close"`
}

// SimulationResult is everything one simulation request produced.
type SimulationResult struct {
	ID         string            `json:"id"`
	Seed       uint64            `json:"seed"`
	Days       int               `json:"n_days"`
	Runs       int               `json:"n_sim_runs"`
	Statistics ReturnStatistics  `json:"statistics"`
	Summary    SimulationSummary `json:"summary"`
	Paths      []SimulatedPath   `json:"-"`
	CreatedAt  time.Time         `json:"created_at"`
	Duration   time.Duration     `json:"duration"`
}

// Rows flattens the paths into (day, run, close) triples sorted by day then run.
func (r *SimulationResult) Rows() []SimulationRow {
	if r == nil || len(r.Paths) == 0 {
		return nil
	}
	out := make([]SimulationRow, 0, len(r.Paths)*(r.Days+1))
	for day := 0; day <= r.Days; day++ {
		for _, p := range r.Paths {
			out = append(out, SimulationRow{Day: day, Run: p.Run, Close: p.Closes[day]})
		}
	}
	return out
}
