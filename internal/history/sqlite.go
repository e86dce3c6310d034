package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteStore implements Store using SQLite.
type sqliteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

func newSQLiteStore(dbPath string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &sqliteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *sqliteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		outcome TEXT NOT NULL,
		warnings INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		detail TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a run record to the store.
func (s *sqliteStore) Append(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, kind, target, outcome, warnings, duration_ms, detail, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, string(rec.Kind), rec.Target, string(rec.Outcome),
		rec.Warnings, rec.Duration.Milliseconds(), rec.Detail, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, target, outcome, warnings, duration_ms, detail, created_at FROM runs ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var kind, outcome string
		var durationMS, createdUnix int64

		if err := rows.Scan(&rec.ID, &kind, &rec.Target, &outcome, &rec.Warnings, &durationMS, &rec.Detail, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.Outcome = Outcome(outcome)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.CreatedAt = time.Unix(createdUnix, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
