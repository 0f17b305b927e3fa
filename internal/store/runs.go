package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the state of a recorded run.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusPassed  RunStatus = "passed"
	StatusFailed  RunStatus = "failed"
)

// Run is one invocation of the trial runner.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`

	// Remote is the engine URL the run talked to.
	Remote string `json:"remote,omitempty"`

	// Error is the error that stopped a failed run.
	Error string `json:"error,omitempty"`

	// Trials is the number of trials recorded for the run.
	Trials int `json:"trials"`
}

// TrialRecord is one trial of a run.
type TrialRecord struct {
	RunID        string        `json:"run_id"`
	Seq          int           `json:"seq"`
	Trial        string        `json:"trial"`
	Queryset     string        `json:"queryset"`
	QuerysetHash string        `json:"queryset_hash"`
	Level        string        `json:"level"`
	Fetched      bool          `json:"fetched"`
	Rows         int64         `json:"rows"`
	Passed       bool          `json:"passed"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// NewRunID returns a time-ordered run id (UUIDv7).
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// BeginRun records the start of a run with status running.
func (s *Store) BeginRun(ctx context.Context, id string, startedAt time.Time, remote string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status, remote)
		VALUES (?, ?, ?, ?)
	`, id, startedAt.UnixMilli(), string(StatusRunning), remote)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordTrial stores the outcome of one trial. Recording the same
// (run, seq) twice replaces the earlier record.
func (s *Store) RecordTrial(ctx context.Context, rec TrialRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trial_results
		(run_id, seq, trial, queryset, queryset_hash, level, fetched, row_count, passed, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO UPDATE SET
			trial = excluded.trial,
			queryset = excluded.queryset,
			queryset_hash = excluded.queryset_hash,
			level = excluded.level,
			fetched = excluded.fetched,
			row_count = excluded.row_count,
			passed = excluded.passed,
			error = excluded.error,
			started_at = excluded.started_at,
			duration_ms = excluded.duration_ms
	`,
		rec.RunID,
		rec.Seq,
		rec.Trial,
		rec.Queryset,
		rec.QuerysetHash,
		rec.Level,
		rec.Fetched,
		rec.Rows,
		rec.Passed,
		rec.Error,
		rec.StartedAt.UnixMilli(),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record trial %s: %w", rec.Trial, err)
	}
	return nil
}

// FinishRun marks a run passed or failed.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, finishedAt time.Time, runErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, error = ?
		WHERE id = ?
	`, string(status), finishedAt.UnixMilli(), runErr, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

const runColumns = `
	r.id, r.started_at, r.finished_at, r.status, r.remote, r.error,
	(SELECT COUNT(*) FROM trial_results t WHERE t.run_id = r.id)
`

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ReadTrials returns the trials of a run in run order.
func (s *Store) ReadTrials(ctx context.Context, runID string) ([]TrialRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, trial, queryset, queryset_hash, level, fetched, row_count, passed, error, started_at, duration_ms
		FROM trial_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read trials: %w", err)
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		var rec TrialRecord
		var startedMs, durationMs int64
		if err := rows.Scan(
			&rec.RunID, &rec.Seq, &rec.Trial, &rec.Queryset, &rec.QuerysetHash, &rec.Level,
			&rec.Fetched, &rec.Rows, &rec.Passed, &rec.Error, &startedMs, &durationMs,
		); err != nil {
			return nil, fmt.Errorf("read trials: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedMs).UTC()
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trials: %w", err)
	}
	return out, nil
}

// LastPassingRows returns the row count of the most recent passing trial
// for a queryset definition, ignoring trials of excludeRunID. ok is false
// when the definition never passed before.
func (s *Store) LastPassingRows(ctx context.Context, querysetHash, excludeRunID string) (rows int64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT t.row_count
		FROM trial_results t
		JOIN runs r ON r.id = t.run_id
		WHERE t.queryset_hash = ? AND t.passed = 1 AND t.run_id != ?
		ORDER BY r.started_at DESC, r.id DESC, t.seq DESC
		LIMIT 1
	`, querysetHash, excludeRunID).Scan(&rows)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("last passing rows: %w", err)
	}
	return rows, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var startedMs int64
	var finishedMs sql.NullInt64
	var status string
	if err := sc.Scan(&run.ID, &startedMs, &finishedMs, &status, &run.Remote, &run.Error, &run.Trials); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.StartedAt = time.UnixMilli(startedMs).UTC()
	if finishedMs.Valid {
		t := time.UnixMilli(finishedMs.Int64).UTC()
		run.FinishedAt = &t
	}
	return run, nil
}
