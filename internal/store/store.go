// Package store provides a SQLite-backed query history store. Every answered
// query is persisted with its mode, answer, and latency so operators can
// review what the assistant was asked and how it responded across restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is a single answered query.
type Entry struct {
	// Query is the question text.
	Query string
	// Mode is the retrieval mode the query ran under.
	Mode string
	// Answer is the text the model produced.
	Answer string
	// Elapsed is how long the query took end to end.
	Elapsed time.Duration
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// HistoryStore persists and retrieves answered queries.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Record persists a single answered query.
	Record(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, ordered oldest-first.
	// If fewer than n entries exist, all are returned.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the query history database.
// It resolves to ~/.lightrag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".lightrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS queries (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    query        TEXT    NOT NULL,
    mode         TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    elapsed_ms   INTEGER NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_queries_created
    ON queries (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists a single answered query.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	const q = `INSERT INTO queries (query, mode, answer, elapsed_ms, created_at) VALUES (?, ?, ?, ?, ?)`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, q, e.Query, e.Mode, e.Answer, e.Elapsed.Milliseconds(), created.Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, ordered oldest-first. Uses a
// subquery to select the tail then re-order for display.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT query, mode, answer, elapsed_ms, created_at FROM (
    SELECT id, query, mode, answer, elapsed_ms, created_at
    FROM   queries
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var elapsedMS, ts int64
		if err := rows.Scan(&e.Query, &e.Mode, &e.Answer, &elapsedMS, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
