// Package ledger records run progress durably so an interrupted run can
// resume from its last committed cursor.
package ledger

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrConflict is returned by Create when the source already has an
// in-progress run.
var ErrConflict = errors.New("another run is in progress for this source")

// ErrNotFound is returned when a run id does not exist or is no longer
// mutable.
var ErrNotFound = errors.New("run checkpoint not found")

// Checkpoint is the durable progress record of one run.
type Checkpoint struct {
	RunID     string
	Source    string
	Cursor    string
	Processed int
	Status    Status
	Reason    string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Ledger is the progress store contract. Advance must be atomic: a
// concurrent reader never observes a cursor without its matching count.
// Create must atomically reject a second in-progress run per source.
// Fail is terminal; a failed run is never resumed.
type Ledger interface {
	Create(ctx context.Context, runID, source string) (Checkpoint, error)
	Advance(ctx context.Context, runID, cursor string, delta int) error
	Complete(ctx context.Context, runID string) error
	Fail(ctx context.Context, runID, reason string) error
	Latest(ctx context.Context, source string) (Checkpoint, bool, error)
}
