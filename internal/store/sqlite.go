package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ KeyLog = (*SQLiteStore)(nil)
var _ RunLedger = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed_keys (
	kind      TEXT NOT NULL,
	key       TEXT NOT NULL,
	marked_at TEXT NOT NULL,
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	UNIQUE (kind, key)
);
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	start_date    TEXT NOT NULL,
	end_date      TEXT NOT NULL,
	new_days      INTEGER NOT NULL,
	rows_written  INTEGER NOT NULL,
	skipped_days  INTEGER NOT NULL,
	failed_groups INTEGER NOT NULL,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT ''
);
`

// tsLayout is fixed-width so text ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord summarises one pipeline run.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	StartDate    string
	EndDate      string
	NewDays      int
	RowsWritten  int64
	SkippedDays  int
	FailedGroups int
	Status       string
	Error        string
}

// Run statuses.
const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

// SQLiteStore implements KeyLog and RunLedger backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// tables it needs and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; the pipeline is sequential anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// KeyLog implementation
// ---------------------------------------------------------------------------

// LoadKeys returns every key recorded for kind in insertion order.
func (s *SQLiteStore) LoadKeys(ctx context.Context, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM processed_keys WHERE kind = ? ORDER BY seq`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// AppendKey records key under kind. Recording a key twice is a no-op.
func (s *SQLiteStore) AppendKey(ctx context.Context, kind, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_keys (kind, key, marked_at) VALUES (?, ?, ?)`,
		kind, key, time.Now().UTC().Format(tsLayout))
	return err
}

// ---------------------------------------------------------------------------
// RunLedger implementation
// ---------------------------------------------------------------------------

// RecordRun inserts or replaces the record with the same ID.
func (s *SQLiteStore) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs
	(id, started_at, finished_at, start_date, end_date, new_days, rows_written,
	 skipped_days, failed_groups, status, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(tsLayout),
		r.FinishedAt.UTC().Format(tsLayout),
		r.StartDate, r.EndDate, r.NewDays, r.RowsWritten,
		r.SkippedDays, r.FailedGroups, r.Status, r.Error)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, start_date, end_date, new_days, rows_written,
       skipped_days, failed_groups, status, error
FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.StartDate, &r.EndDate,
			&r.NewDays, &r.RowsWritten, &r.SkippedDays, &r.FailedGroups, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(tsLayout, started)
		r.FinishedAt, _ = time.Parse(tsLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
