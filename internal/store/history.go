package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mendhq/mend/internal/types"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	repository  TEXT NOT NULL,
	branch      TEXT NOT NULL,
	status      TEXT NOT NULL,
	score       INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	report      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// History is the durable record of finished runs.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the run-history database.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record upserts the run. Called at finalization with the frozen state,
// but safe to call mid-run for checkpointing.
func (h *History) Record(ctx context.Context, state *types.RunState) error {
	report, err := json.Marshal(state.Results)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	var finishedAt any
	if state.FinishedAt != nil {
		finishedAt = state.FinishedAt.UTC().Format(time.RFC3339)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, repository, branch, status, score, started_at, finished_at, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			score = excluded.score,
			finished_at = excluded.finished_at,
			report = excluded.report`,
		state.RunID,
		state.Results.Repository,
		state.Results.BranchName,
		string(state.Status),
		state.Results.Score,
		state.StartedAt.UTC().Format(time.RFC3339),
		finishedAt,
		string(report),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", state.RunID, err)
	}
	return nil
}

// Summary is one row of the run history listing.
type Summary struct {
	RunID      string
	Repository string
	Branch     string
	Status     types.RunStatus
	Score      int
	StartedAt  string
	FinishedAt string
}

// List returns the most recent runs, newest first.
func (h *History) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT run_id, repository, branch, status, score, started_at, COALESCE(finished_at, '')
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var status string
		if err := rows.Scan(&s.RunID, &s.Repository, &s.Branch, &status, &s.Score, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		s.Status = types.RunStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetReport returns the stored report for a run id.
func (h *History) GetReport(ctx context.Context, runID string) (*types.Results, error) {
	var raw string
	err := h.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading report for %s: %w", runID, err)
	}

	var results types.Results
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("unmarshaling report for %s: %w", runID, err)
	}
	return &results, nil
}
