package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning     = "running"
	StatusInterrupted = "interrupted"
)

// Store provides persistence for runs, per-test outcomes and events.
type Store struct {
	db *sql.DB
}

// NewStore creates a store for run history.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID        string
	CreatedAt    string
	FinishedAt   string
	Status       string
	ProjectRoot  string
	Framework    string
	Provider     string
	Model        string
	Agents       int
	MaxAttempts  int
	DryRun       bool
	GitHead      string
	GitDirty     bool
	TotalFailing int
	FixedCount   int
	StateSuspect bool
	RunDir       string
}

// TestRecord is the terminal state of one failing test.
type TestRecord struct {
	RunID           string
	Seq             int
	Identifier      string
	SourceFile      string
	State           string
	Reason          string
	Attempts        int
	FixedByProducer *int
	FixedTarget     string
}

// RunResult is written when a run finishes.
type RunResult struct {
	Status       string
	TotalFailing int
	FixedCount   int
	StateSuspect bool
}

// Event represents a timeline event for a run.
type Event struct {
	Seq      int
	TS       string
	Type     string
	Message  string
	DataJSON string
}

// CreateRun inserts the run record and a run_started event.
func (s *Store) CreateRun(ctx context.Context, rec RunRecord) error {
	if rec.CreatedAt == "" {
		rec.CreatedAt = now()
	}
	if rec.Status == "" {
		rec.Status = StatusRunning
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(run_id, created_at, status, project_root, framework, provider, model,
		agents, max_attempts, dry_run, git_head, git_dirty, run_dir)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.CreatedAt, rec.Status, rec.ProjectRoot, rec.Framework, rec.Provider, rec.Model,
		rec.Agents, rec.MaxAttempts, rec.DryRun, nullableString(rec.GitHead), rec.GitDirty, rec.RunDir); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	if err := s.insertEvent(ctx, tx, rec.RunID, Event{Type: "run_started", Message: "run started"}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}
	return nil
}

// RecordTest inserts a test outcome and an optional event in one transaction.
func (s *Store) RecordTest(ctx context.Context, rec TestRecord, event *Event) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record test: %w", err)
	}
	if rec.Seq == 0 {
		row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM tests WHERE run_id=?`, rec.RunID)
		if err := row.Scan(&rec.Seq); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("read test seq: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO tests(run_id, seq, identifier, source_file, state, reason, attempts, fixed_by_producer, fixed_target)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Seq, rec.Identifier, nullableString(rec.SourceFile), rec.State, rec.Reason, rec.Attempts,
		nullableInt(rec.FixedByProducer), nullableString(rec.FixedTarget)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert test: %w", err)
	}
	if event != nil {
		if err := s.insertEvent(ctx, tx, rec.RunID, *event); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record test: %w", err)
	}
	return nil
}

// AppendEvent adds one event to the run timeline.
func (s *Store) AppendEvent(ctx context.Context, runID string, event Event) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin append event: %w", err)
	}
	if err := s.insertEvent(ctx, tx, runID, event); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append event: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and a run_finished event.
func (s *Store) FinishRun(ctx context.Context, runID string, res RunResult) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin finish run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET status=?, finished_at=?, total_failing=?, fixed_count=?, state_suspect=? WHERE run_id=?`,
		res.Status, now(), res.TotalFailing, res.FixedCount, res.StateSuspect, runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run: %w", err)
	}
	msg := fmt.Sprintf("run finished: %s (%d/%d fixed)", res.Status, res.FixedCount, res.TotalFailing)
	if err := s.insertEvent(ctx, tx, runID, Event{Type: "run_finished", Message: msg}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish run: %w", err)
	}
	return nil
}

const runColumns = `run_id, created_at, COALESCE(finished_at, ''), status, project_root, framework, provider, model,
	agents, max_attempts, dry_run, COALESCE(git_head, ''), git_dirty, total_failing, fixed_count, state_suspect, run_dir`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var r RunRecord
	err := row.Scan(&r.RunID, &r.CreatedAt, &r.FinishedAt, &r.Status, &r.ProjectRoot, &r.Framework, &r.Provider, &r.Model,
		&r.Agents, &r.MaxAttempts, &r.DryRun, &r.GitHead, &r.GitDirty, &r.TotalFailing, &r.FixedCount, &r.StateSuspect, &r.RunDir)
	return r, err
}

// ListRuns returns runs newest first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// GetRun returns a run by id. ok is false when it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, bool, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id=?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("read run: %w", err)
	}
	return r, true, nil
}

// Tests returns the test outcomes of a run in discovery order.
func (s *Store) Tests(ctx context.Context, runID string) ([]TestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, identifier, COALESCE(source_file, ''), state, reason, attempts,
		fixed_by_producer, COALESCE(fixed_target, '') FROM tests WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TestRecord
	for rows.Next() {
		rec := TestRecord{RunID: runID}
		var producer sql.NullInt64
		if err := rows.Scan(&rec.Seq, &rec.Identifier, &rec.SourceFile, &rec.State, &rec.Reason, &rec.Attempts,
			&producer, &rec.FixedTarget); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		if producer.Valid {
			p := int(producer.Int64)
			rec.FixedByProducer = &p
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return out, nil
}

// Events returns the timeline of a run ordered by sequence.
func (s *Store) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, ts, type, message, COALESCE(data_json, '') FROM events WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Seq, &ev.TS, &ev.Type, &ev.Message, &ev.DataJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// GetRunStatus returns the status for a run id, or empty if missing.
func (s *Store) GetRunStatus(ctx context.Context, runID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE run_id=?`, runID)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read run status: %w", err)
	}
	return status, nil
}

// DeleteRun removes a run; tests and events cascade.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id=?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, runID string, ev Event) error {
	seq, err := s.nextSeq(ctx, tx, runID)
	if err != nil {
		return err
	}
	ts := ev.TS
	if ts == "" {
		ts = now()
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(run_id, seq, ts, type, message, data_json) VALUES(?, ?, ?, ?, ?, ?)`,
		runID, seq, ts, ev.Type, ev.Message, nullableString(ev.DataJSON)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, runID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id=?`, runID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
