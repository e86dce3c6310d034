// Package history persists build and publish records in a local SQLite
// database so past runs can be inspected with the history command.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates record kinds.
type Kind string

const (
	KindBuild   Kind = "build"
	KindPublish Kind = "publish"
)

// Outcome enumerates run outcomes.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Record is one build or publish run.
type Record struct {
	ID        string
	Kind      Kind
	Target    string // builder target, or publish channel
	Outcome   Outcome
	Warnings  int
	Duration  time.Duration
	Detail    string // error message or commit hash
	CreatedAt time.Time
}

// NewRecord creates a record with a fresh id and timestamp.
func NewRecord(kind Kind, target string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Target:    target,
		CreatedAt: time.Now(),
	}
}

// Store is the persistence interface for run records.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open opens the SQLite store at path, creating parent directories as
// needed. Use ":memory:" for an in-memory store.
func Open(path string) (Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create history directory: %w", err)
			}
		}
	}
	return newSQLiteStore(path)
}
