// Package queue implements the persistent discovery work queue.
//
// The work_items table is the coordination primitive for the whole
// pipeline: claim, complete and fail are expressed as atomic,
// storage-backed state transitions so that concurrently scheduled
// worker processes never need any other lock.
package queue

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a work item.
type Status string

// Work item lifecycle states. Transitions are owned exclusively by the
// worker that holds the claim; failed items return to pending only via
// the explicit operator Retry action.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrEmpty is returned by ClaimNext when no pending work items exist.
var ErrEmpty = errors.New("queue: no pending work items")

// WorkItem is one (locality, category) unit of discovery work.
// The pair is unique for the item's lifetime; items are never deleted.
type WorkItem struct {
	ID            int64
	Locality      string
	Category      string
	Status        Status
	LastAttemptAt *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time
}

// Store is the work queue contract used by workers and the reporter.
type Store interface {
	// Enqueue inserts a (locality, category) pair. It is idempotent:
	// enqueuing an existing pair is a no-op.
	Enqueue(ctx context.Context, locality, category string) error

	// ClaimNext atomically selects one pending item, transitions it to
	// in_progress and returns it. No two concurrent callers ever
	// receive the same item. Returns ErrEmpty when nothing is pending.
	ClaimNext(ctx context.Context) (WorkItem, error)

	// Complete marks a claimed item completed.
	Complete(ctx context.Context, id int64) error

	// Fail marks a claimed item failed with a human-readable reason.
	// Failed items are not retried automatically.
	Fail(ctx context.Context, id int64, reason string) error

	// Retry returns all failed items to pending and reports how many
	// were transitioned. This is an explicit operator action, never
	// part of worker control flow.
	Retry(ctx context.Context) (int64, error)

	// CountByStatus returns item counts grouped by status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)

	// ListFailed returns up to limit failed items, most recent first.
	ListFailed(ctx context.Context, limit int) ([]WorkItem, error)
}
