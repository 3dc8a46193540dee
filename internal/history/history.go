// Package history keeps a small local record of completed dump runs so
// earlier output directories can be found again for analysis and parameter
// mining.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Run is one completed dump run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	BaseURL    string
	OutputDir  string
	Total      int
	OK         int
	Failed     int
	Skipped    int
	BodyBytes  int64
	DurationMs int64
}

// Store persists runs in a local sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(absPath))
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at_ns INTEGER NOT NULL,
    base_url TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    total INTEGER NOT NULL,
    ok INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    body_bytes INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ns DESC);
`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts a completed run and returns it with its assigned ID.
func (s *Store) Record(run Run) (Run, error) {
	res, err := s.db.Exec(`
INSERT INTO runs (started_at_ns, base_url, output_dir, total, ok, failed, skipped, body_bytes, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().UnixNano(), run.BaseURL, run.OutputDir,
		run.Total, run.OK, run.Failed, run.Skipped, run.BodyBytes, run.DurationMs,
	)
	if err != nil {
		return Run{}, err
	}
	run.ID, err = res.LastInsertId()
	return run, err
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.Query(`
SELECT id, started_at_ns, base_url, output_dir, total, ok, failed, skipped, body_bytes, duration_ms
FROM runs ORDER BY started_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedNS int64
		if err := rows.Scan(&r.ID, &startedNS, &r.BaseURL, &r.OutputDir,
			&r.Total, &r.OK, &r.Failed, &r.Skipped, &r.BodyBytes, &r.DurationMs); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, startedNS).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefaultPath returns the per-user location of the history database.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".lcudump", "history.db")
	}
	return filepath.Join(home, ".lcudump", "history.db")
}
