package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"StockSim/internal/domain/models"
	domrepo "StockSim/internal/domain/repository"
)

// SQLiteHistory keeps a local log of simulations in a SQLite file.
type SQLiteHistory struct {
	db *sql.DB
}

var _ domrepo.HistoryStore = (*SQLiteHistory)(nil)

// NewSQLiteHistory opens (or creates) the database at path and migrates it.
// ":memory:" gives a throwaway store.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	h := &SQLiteHistory{db: db}
	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return h, nil
}

func (h *SQLiteHistory) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS simulations (
			id              TEXT PRIMARY KEY,
			created_at      INTEGER NOT NULL,
			trigger_kind    TEXT NOT NULL,
			series_key      TEXT NOT NULL,
			n_days          INTEGER NOT NULL,
			n_sim_runs      INTEGER NOT NULL,
			seed            TEXT NOT NULL,
			expected_close  REAL,
			quantile_05     REAL,
			quantile_95     REAL,
			saved_to        TEXT,
			duration_ms     INTEGER,
			payload         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_simulations_created ON simulations(created_at DESC)`,
	}
	for _, s := range stmts {
		if _, err := h.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Record stores rec; the full record is kept as JSON next to a few
// queryable columns.
func (h *SQLiteHistory) Record(ctx context.Context, rec models.SimulationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO simulations
			(id, created_at, trigger_kind, series_key, n_days, n_sim_runs, seed,
			 expected_close, quantile_05, quantile_95, saved_to, duration_ms, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixMilli(), rec.Trigger, rec.Series.Key(), rec.Days, rec.Runs,
		fmt.Sprint(rec.Seed), // TEXT: SQLite integers are signed 64-bit
		rec.Summary.ExpectedClose, rec.Summary.Quantile05, rec.Summary.Quantile95,
		rec.SavedTo, rec.DurationMS, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

// Get returns the record with id or ErrNotFound.
func (h *SQLiteHistory) Get(ctx context.Context, id string) (models.SimulationRecord, error) {
	var payload string
	err := h.db.QueryRowContext(ctx, `SELECT payload FROM simulations WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SimulationRecord{}, fmt.Errorf("simulation %s: %w", id, domrepo.ErrNotFound)
	}
	if err != nil {
		return models.SimulationRecord{}, fmt.Errorf("get simulation: %w", err)
	}
	return decodeRecord(payload)
}

// List returns the newest records first.
func (h *SQLiteHistory) List(ctx context.Context, limit int) ([]models.SimulationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, `SELECT payload FROM simulations ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	defer rows.Close()

	out := []models.SimulationRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes records older than before and returns how many were removed.
func (h *SQLiteHistory) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM simulations WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune simulations: %w", err)
	}
	return res.RowsAffected()
}

func (h *SQLiteHistory) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

func decodeRecord(payload string) (models.SimulationRecord, error) {
	var rec models.SimulationRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, fmt.Errorf("decode simulation: %w", err)
	}
	return rec, nil
}
