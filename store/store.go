// Package store archives completed paper collections. Sessions themselves
// stay in memory; the archive keeps final results retrievable after the
// session is cleaned up.
//
// Three backends: in-memory (tests, development), SQLite (single-process
// persistence), MySQL (shared deployments).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/paperflow/paper"
)

// ErrNotFound is returned when a requested run ID does not exist.
var ErrNotFound = errors.New("store: not found")

// Record is one archived run.
type Record struct {
	RunID      string                `json:"run_id"`
	Query      string                `json:"query"`
	SavedAt    time.Time             `json:"saved_at"`
	Collection paper.PaperCollection `json:"collection"`
}

// Store persists completed collections keyed by run ID.
//
// Implementations must be safe for concurrent use. Save overwrites an
// existing record with the same run ID.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, runID string) (Record, error)
	// List returns archived records newest first, at most limit entries
	// (limit <= 0 means all).
	List(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, runID string) error
	Close() error
}
