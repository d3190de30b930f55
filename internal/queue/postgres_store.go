package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs. pgxmock
// satisfies it, which keeps the SQL testable without a live database.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a Postgres work_items table.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore constructs a store from an existing pool.
func NewPostgresStore(pool PgxPool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Enqueue inserts the pair, ignoring duplicates.
func (s *PostgresStore) Enqueue(ctx context.Context, locality, category string) error {
	if locality == "" || category == "" {
		return fmt.Errorf("locality and category are required")
	}
	query := `
		INSERT INTO work_items (locality, category, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (locality, category) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, locality, category, StatusPending); err != nil {
		return fmt.Errorf("enqueue work item: %w", err)
	}
	return nil
}

// ClaimNext selects one pending item with FOR UPDATE SKIP LOCKED so
// concurrent workers never race on the same row, then flips it to
// in_progress in the same statement.
func (s *PostgresStore) ClaimNext(ctx context.Context) (WorkItem, error) {
	query := `
		UPDATE work_items
		SET status = $1, last_attempt_at = NOW(), error_message = NULL
		WHERE id = (
			SELECT id FROM work_items
			WHERE status = $2
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, locality, category, status, last_attempt_at, error_message, created_at
	`
	var item WorkItem
	err := s.pool.QueryRow(ctx, query, StatusInProgress, StatusPending).Scan(
		&item.ID,
		&item.Locality,
		&item.Category,
		&item.Status,
		&item.LastAttemptAt,
		&item.ErrorMessage,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkItem{}, ErrEmpty
		}
		return WorkItem{}, fmt.Errorf("claim work item: %w", err)
	}
	return item, nil
}

// Complete transitions a claimed item to completed.
func (s *PostgresStore) Complete(ctx context.Context, id int64) error {
	query := `UPDATE work_items SET status = $1, error_message = NULL WHERE id = $2 AND status = $3`
	tag, err := s.pool.Exec(ctx, query, StatusCompleted, id, StatusInProgress)
	if err != nil {
		return fmt.Errorf("complete work item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("work item %d is not in progress", id)
	}
	return nil
}

// Fail transitions a claimed item to failed with the recorded reason.
func (s *PostgresStore) Fail(ctx context.Context, id int64, reason string) error {
	query := `UPDATE work_items SET status = $1, error_message = $2 WHERE id = $3 AND status = $4`
	tag, err := s.pool.Exec(ctx, query, StatusFailed, reason, id, StatusInProgress)
	if err != nil {
		return fmt.Errorf("fail work item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("work item %d is not in progress", id)
	}
	return nil
}

// Retry returns every failed item to pending.
func (s *PostgresStore) Retry(ctx context.Context) (int64, error) {
	query := `UPDATE work_items SET status = $1, error_message = NULL WHERE status = $2`
	tag, err := s.pool.Exec(ctx, query, StatusPending, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("retry failed work items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus groups item counts by lifecycle state.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	query := `SELECT status, COUNT(*) FROM work_items GROUP BY status`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count work items: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan work item count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work item counts: %w", err)
	}
	return counts, nil
}

// ListFailed returns a bounded sample of failed items for reporting.
func (s *PostgresStore) ListFailed(ctx context.Context, limit int) ([]WorkItem, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, locality, category, status, last_attempt_at, error_message, created_at
		FROM work_items
		WHERE status = $1
		ORDER BY last_attempt_at DESC NULLS LAST
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, StatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed work items: %w", err)
	}
	defer rows.Close()

	var items []WorkItem
	for rows.Next() {
		var item WorkItem
		err := rows.Scan(
			&item.ID,
			&item.Locality,
			&item.Category,
			&item.Status,
			&item.LastAttemptAt,
			&item.ErrorMessage,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed work item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed work items: %w", err)
	}
	return items, nil
}
