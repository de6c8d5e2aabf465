package storageelement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const columns = `id, name, endpoint, mode, capacity_total, capacity_used,
	file_count, status, consecutive_failures, last_sync_at, last_seen_at, created_at`

// Store persists StorageElement records in the Admin schema's
// storage_elements table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanRow(row pgx.Row) (StorageElement, error) {
	var se StorageElement
	err := row.Scan(
		&se.ID, &se.Name, &se.Endpoint, &se.Mode, &se.CapacityTotal, &se.CapacityUsed,
		&se.FileCount, &se.Status, &se.ConsecutiveFailures, &se.LastSyncAt, &se.LastSeenAt, &se.CreatedAt,
	)
	return se, err
}

func scanRows(rows pgx.Rows) ([]StorageElement, error) {
	defer rows.Close()
	var items []StorageElement
	for rows.Next() {
		se, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning storage element row: %w", err)
		}
		items = append(items, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating storage element rows: %w", err)
	}
	return items, nil
}

func (s *Store) Create(ctx context.Context, se StorageElement) (StorageElement, error) {
	query := `INSERT INTO storage_elements
		(id, name, endpoint, mode, capacity_total, capacity_used,
		 file_count, status, consecutive_failures, last_sync_at, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + columns

	row := s.pool.QueryRow(ctx, query,
		se.ID, se.Name, se.Endpoint, se.Mode, se.CapacityTotal, se.CapacityUsed,
		se.FileCount, se.Status, se.ConsecutiveFailures, se.LastSyncAt, se.LastSeenAt, se.CreatedAt,
	)
	return scanRow(row)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (StorageElement, error) {
	query := `SELECT ` + columns + ` FROM storage_elements WHERE id = $1`
	return scanRow(s.pool.QueryRow(ctx, query, id))
}

func (s *Store) List(ctx context.Context) ([]StorageElement, error) {
	query := `SELECT ` + columns + ` FROM storage_elements ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing storage elements: %w", err)
	}
	return scanRows(rows)
}

// UpdateSync persists the result of one sync cycle (§4.15): the freshly
// observed capacity/file_count, the new status/failure-streak, and the
// sync timestamp. last_seen_at only advances on a successful call; callers
// pass the previous last_seen_at when a cycle fails.
func (s *Store) UpdateSync(ctx context.Context, id uuid.UUID, capacityTotal, capacityUsed, fileCount int64, status Status, consecutiveFailures int, syncedAt, seenAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE storage_elements
		SET capacity_total = $2, capacity_used = $3, file_count = $4,
		    status = $5, consecutive_failures = $6, last_sync_at = $7, last_seen_at = $8
		WHERE id = $1`,
		id, capacityTotal, capacityUsed, fileCount, status, consecutiveFailures, syncedAt, seenAt)
	if err != nil {
		return fmt.Errorf("updating storage element sync state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateEndpoint changes the name/endpoint an operator registered for a
// Storage Element; Mode, capacity, and sync state stay read-only from
// Admin's side (§4.15).
func (s *Store) UpdateEndpoint(ctx context.Context, id uuid.UUID, name, endpoint string) (StorageElement, error) {
	query := `UPDATE storage_elements SET name = $2, endpoint = $3 WHERE id = $1 RETURNING ` + columns
	return scanRow(s.pool.QueryRow(ctx, query, id, name, endpoint))
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM storage_elements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting storage element: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
