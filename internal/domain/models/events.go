package models

import "time"

// Simulation triggers.
const (
	TriggerHTTP     = "http"
	TriggerStream   = "stream"
	TriggerKafka    = "kafka"
	TriggerQueue    = "queue"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// SimulationRecord is the persisted summary of one simulation. Paths are not
// included; they live in the saved table when the caller asked to save them.
type SimulationRecord struct {
	ID         string            `json:"id"`
	Trigger    string            `json:"trigger"`
	Series     SeriesRef         `json:"series"`
	Seed       uint64            `json:"seed"`
	Days       int               `json:"n_days"`
	Runs       int               `json:"n_sim_runs"`
	Statistics ReturnStatistics  `json:"statistics"`
	Summary    SimulationSummary `json:"summary"`
	SavedTo    string            `json:"saved_to,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SimulationCompletedEvent is published once a simulation finished.
type SimulationCompletedEvent struct {
	SimulationRecord
	Timestamp time.Time `json:"timestamp"`
}

// CatalogColumn is a column of a warehouse table.
type CatalogColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
