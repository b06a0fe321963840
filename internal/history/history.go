// Package history persists run outcomes to a local SQLite database. The
// audit log is the tamper-evident record; history is the queryable view
// used by the recent/failures commands.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded invocation outcome.
type Run struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Command    string    `json:"command"`
	Decision   string    `json:"decision"`
	Kind       string    `json:"kind,omitempty"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
}

// Failed reports whether the run ended badly: refused before execution or
// executed with a nonzero exit code.
func (r Run) Failed() bool {
	return r.Decision != "executed" || r.ExitCode != 0
}

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	command     TEXT NOT NULL,
	decision    TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	exit_code   INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the conventional history location,
// ~/.runguard/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: resolve home: %w", err)
	}
	return filepath.Join(home, ".runguard", "history.db"), nil
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Single connection: the driver returns SQLITE_BUSY to concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordRun inserts one run. A zero StartedAt is filled with the current
// time.
func (s *Store) RecordRun(r Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, started_at, command, decision, kind, exit_code, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt.UTC().Format(timeLayout), r.Command, r.Decision, r.Kind, r.ExitCode, r.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// Recent returns the n most recent runs, newest first.
func (s *Store) Recent(n int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, started_at, command, decision, kind, exit_code, duration_ms
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	return scanRuns(rows)
}

// Failures returns the n most recent failed runs, newest first. A failure
// is any refusal or any execution with a nonzero exit code.
func (s *Store) Failures(n int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, started_at, command, decision, kind, exit_code, duration_ms
		 FROM runs WHERE decision != 'executed' OR exit_code != 0
		 ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query failures: %w", err)
	}
	return scanRuns(rows)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.RunID, &started, &r.Command, &r.Decision, &r.Kind, &r.ExitCode, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		if t, err := time.Parse(timeLayout, started); err == nil {
			r.StartedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate rows: %w", err)
	}
	return out, nil
}
