package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an index run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run records one invocation of the indexer
type Run struct {
	ID           string     `json:"id"`
	Root         string     `json:"root"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Repositories int        `json:"repositories"`
	Files        int        `json:"files"`
	Entries      int        `json:"entries"`
	Failures     int        `json:"failures"`
}

// RunTotals are the counters written when a run finishes
type RunTotals struct {
	Repositories int
	Files        int
	Entries      int
	Failures     int
}

// Failure is a file whose history could not be retrieved during a run
type Failure struct {
	RunID    string `json:"runId"`
	RepoRoot string `json:"repoRoot"`
	File     string `json:"file"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// RunStore persists index runs and their failures
type RunStore struct {
	db *DB
}

// NewRunStore creates a run store
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// StartRun inserts a running row and returns its id
func (s *RunStore) StartRun(ctx context.Context, root string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Root:      root,
		Status:    RunRunning,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO index_runs (run_id, root, status, started_at) VALUES (?, ?, ?, ?)
	`, run.ID, run.Root, string(run.Status), run.StartedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final status and counters of a run
func (s *RunStore) FinishRun(ctx context.Context, id string, status RunStatus, totals RunTotals) error {
	res, err := s.db.Exec(ctx, `
		UPDATE index_runs
		SET status = ?, finished_at = ?, repositories = ?, files = ?, entries = ?, failures = ?
		WHERE run_id = ?
	`, string(status), time.Now().UTC().Format(time.RFC3339),
		totals.Repositories, totals.Files, totals.Entries, totals.Failures, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RecordFailure attaches a per-file failure to a run
func (s *RunStore) RecordFailure(ctx context.Context, f Failure) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO index_failures (run_id, repo_root, file, code, message) VALUES (?, ?, ?, ?, ?)
	`, f.RunID, f.RepoRoot, f.File, f.Code, f.Message)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// GetRun loads a run by id
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT run_id, root, status, started_at, finished_at, repositories, files, entries, failures
		FROM index_runs WHERE run_id = ?
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return run, true, nil
}

// ListRuns returns the most recent runs, newest first
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT run_id, root, status, started_at, finished_at, repositories, files, entries, failures
		FROM index_runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Failures lists the failures recorded for a run
func (s *RunStore) Failures(ctx context.Context, id string) ([]Failure, error) {
	rows, err := s.db.Query(ctx, `
		SELECT run_id, repo_root, file, code, message
		FROM index_failures WHERE run_id = ? ORDER BY repo_root, file
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := []Failure{}
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.RunID, &f.RepoRoot, &f.File, &f.Code, &f.Message); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		status     string
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Root, &status, &startedAt, &finishedAt,
		&run.Repositories, &run.Files, &run.Entries, &run.Failures); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)

	ts, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at format: %w", err)
	}
	run.StartedAt = ts

	if finishedAt.Valid {
		ft, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid finished_at format: %w", err)
		}
		run.FinishedAt = &ft
	}
	return &run, nil
}
