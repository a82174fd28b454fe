// Package history persists one record per purge run to a local database so
// past runs can be reviewed after the audit logs are gone.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a run ID with no stored record.
var ErrNotFound = errors.New("run not found")

// Record is the durable summary of one purge run.
type Record struct {
	RunID      string    `json:"run_id"`
	Host       string    `json:"host"`
	Mailbox    string    `json:"mailbox"`
	After      time.Time `json:"after"`
	Before     time.Time `json:"before"`
	MaxDelete  int       `json:"max_delete"`
	Read       int       `json:"read"`
	Deleted    int       `json:"deleted"`
	Errors     int       `json:"errors"`
	Restarts   int       `json:"restarts"`
	Pages      int       `json:"pages"`
	Expunged   int       `json:"expunged"`
	Committed  bool      `json:"committed"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Outcome values stored in Record.Outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Store is the persistence interface for run records.
type Store interface {
	// Save writes one finished run.
	Save(ctx context.Context, rec *Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)
	// Get returns the record for one run ID, or ErrNotFound.
	Get(ctx context.Context, runID string) (*Record, error)
	// Close releases the underlying storage.
	Close() error
}
