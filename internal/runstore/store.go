// Package runstore persists the run ledger: monotonic build numbers, final
// results and per-run events. It backs the changed-from-previous hook
// predicate and the daemon's run history.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/buildpipe/internal/result"
)

// Run is one persisted pipeline run.
type Run struct {
	ID          string
	Pipeline    string
	BuildNumber int64
	Result      string
	Cause       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Event is one appended run event.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Payload   []byte
}

// ErrNoRuns is returned by LastResult when the pipeline has no finished runs.
var ErrNoRuns = errors.New("no finished runs recorded")

// Store is a SQLite-backed run ledger.
// Use ":memory:" for tests, or a file path for persistent storage.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the store at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		pipeline TEXT NOT NULL,
		build_number INTEGER NOT NULL,
		result TEXT,
		cause TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		UNIQUE(pipeline, build_number)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline, build_number);
	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the underlying handle so sibling stores (artifacts) can share
// one database file.
func (s *Store) DB() *sql.DB { return s.db }

// BeginRun allocates the next build number for the pipeline and inserts the
// run row. Build numbers are monotonically increasing per pipeline name.
func (s *Store) BeginRun(ctx context.Context, runID, pipeline string, startedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(build_number), 0) + 1 FROM runs WHERE pipeline = ?",
		pipeline,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("allocate build number: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, pipeline, build_number, started_at) VALUES (?, ?, ?, ?)",
		runID, pipeline, next, startedAt.Unix(),
	); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return next, nil
}

// FinishRun records the final result and cause for a run.
func (s *Store) FinishRun(ctx context.Context, runID string, final result.Outcome, cause string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET result = ?, cause = ?, finished_at = ? WHERE id = ?",
		final.String(), cause, finishedAt.Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run id %s", runID)
	}
	return nil
}

// LastResult returns the result of the most recent finished run of the
// pipeline, excluding the run identified by excludeRunID (the in-flight one).
func (s *Store) LastResult(ctx context.Context, pipeline, excludeRunID string) (result.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM runs
		 WHERE pipeline = ? AND id != ? AND result IS NOT NULL
		 ORDER BY build_number DESC LIMIT 1`,
		pipeline, excludeRunID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return result.Success, ErrNoRuns
	}
	if err != nil {
		return result.Success, fmt.Errorf("query last result: %w", err)
	}
	return result.ParseOutcome(raw)
}

// AppendEvent adds an event to a run's history.
func (s *Store) AppendEvent(ctx context.Context, runID, eventType string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO run_events (run_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)",
		runID, eventType, time.Now().Unix(), payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventsByRun retrieves all events for a run in append order.
func (s *Store) EventsByRun(ctx context.Context, runID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, event_type, timestamp, payload FROM run_events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &ts, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}

// GetRun retrieves one run row by id.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r Run
	var started int64
	var res, cause sql.NullString
	var finished sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, pipeline, build_number, result, cause, started_at, finished_at FROM runs WHERE id = ?",
		runID,
	).Scan(&r.ID, &r.Pipeline, &r.BuildNumber, &res, &cause, &started, &finished)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	r.Result = res.String
	r.Cause = cause.String
	r.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		r.FinishedAt = time.Unix(finished.Int64, 0)
	}
	return r, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
