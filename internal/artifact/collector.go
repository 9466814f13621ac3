// Package artifact records build artifacts as write-once rows tagged with a
// content fingerprint, with keep-last-N retention per artifact name. How the
// files are produced is out of scope; only the (name, path, fingerprint,
// runID) tuple is in scope.
package artifact

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Artifact is one recorded artifact row.
type Artifact struct {
	ID          int64
	Name        string
	Path        string
	Fingerprint string
	RunID       string
	RecordedAt  time.Time
}

// Collector records artifacts into a SQLite table. It may share a database
// handle with the run store or own one opened via Open.
type Collector struct {
	db    *sql.DB
	mu    sync.Mutex
	owned bool
}

// Open creates a collector with its own database at dbPath.
func Open(dbPath string) (*Collector, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	c, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New creates a collector on an existing handle and ensures the schema.
func New(db *sql.DB) (*Collector, error) {
	c := &Collector{db: db}
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		run_id TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		UNIQUE(name, run_id)
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_name ON artifacts(name, id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize artifact schema: %w", err)
	}
	return c, nil
}

// Collect fingerprints the file at path and records it for the run. Rows are
// write-once: recording the same artifact name twice for one run is an error.
func (c *Collector) Collect(ctx context.Context, runID, name, path string) (Artifact, error) {
	fp, err := fingerprintFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	res, err := c.db.ExecContext(ctx,
		"INSERT INTO artifacts (name, path, fingerprint, run_id, recorded_at) VALUES (?, ?, ?, ?, ?)",
		name, path, fp, runID, now.Unix(),
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("record artifact %s: %w", name, err)
	}
	id, _ := res.LastInsertId()
	return Artifact{ID: id, Name: name, Path: path, Fingerprint: fp, RunID: runID, RecordedAt: now}, nil
}

// PruneKeepLast deletes all but the newest keep rows for the artifact name.
// keep <= 0 keeps everything.
func (c *Collector) PruneKeepLast(ctx context.Context, name string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM artifacts WHERE name = ? AND id NOT IN (
			SELECT id FROM artifacts WHERE name = ? ORDER BY id DESC LIMIT ?
		)`,
		name, name, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune artifacts %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ByRun returns the artifacts recorded for a run.
func (c *Collector) ByRun(ctx context.Context, runID string) ([]Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx,
		"SELECT id, name, path, fingerprint, run_id, recorded_at FROM artifacts WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

// ByName returns all retained rows for an artifact name, newest first.
func (c *Collector) ByName(ctx context.Context, name string) ([]Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx,
		"SELECT id, name, path, fingerprint, run_id, recorded_at FROM artifacts WHERE name = ? ORDER BY id DESC",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

func scanArtifacts(rows *sql.Rows) ([]Artifact, error) {
	var out []Artifact
	for rows.Next() {
		var a Artifact
		var ts int64
		if err := rows.Scan(&a.ID, &a.Name, &a.Path, &a.Fingerprint, &a.RunID, &ts); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.RecordedAt = time.Unix(ts, 0)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database if the collector owns it.
func (c *Collector) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
