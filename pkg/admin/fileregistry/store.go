package fileregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `file_id, element_id, retention_policy, ttl_expires_at,
	finalized_mode, soft_deleted_at, last_seen_at`

// Store persists File Registry entries and orphan observations in the
// Admin schema.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.FileID, &e.ElementID, &e.RetentionPolicy, &e.TTLExpiresAt,
		&e.FinalizedMode, &e.SoftDeletedAt, &e.LastSeenAt)
	return e, err
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var items []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file registry row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file registry rows: %w", err)
	}
	return items, nil
}

// Upsert is called by the Storage-Element Sync loop as it scans an SE's
// file list, refreshing last_seen_at on every observation.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO file_registry (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (file_id) DO UPDATE SET
			element_id = EXCLUDED.element_id,
			retention_policy = EXCLUDED.retention_policy,
			ttl_expires_at = EXCLUDED.ttl_expires_at,
			finalized_mode = EXCLUDED.finalized_mode,
			last_seen_at = EXCLUDED.last_seen_at`,
		e.FileID, e.ElementID, e.RetentionPolicy, e.TTLExpiresAt,
		e.FinalizedMode, e.SoftDeletedAt, e.LastSeenAt)
	if err != nil {
		return fmt.Errorf("upserting file registry entry: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, fileID uuid.UUID) (Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM file_registry WHERE file_id = $1`
	return scanEntry(s.pool.QueryRow(ctx, query, fileID))
}

// ListExpiredTemporary returns temporary entries whose TTL has passed and
// are not yet soft-deleted (§4.16 strategy a).
func (s *Store) ListExpiredTemporary(ctx context.Context, now time.Time) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM file_registry
		WHERE retention_policy = $1 AND ttl_expires_at < $2 AND soft_deleted_at IS NULL`
	rows, err := s.pool.Query(ctx, query, RetentionTemporary, now)
	if err != nil {
		return nil, fmt.Errorf("listing expired temporary entries: %w", err)
	}
	return scanEntries(rows)
}

// ListFinalizedWithEditCopy returns entries confirmed finalized on
// rw/ro/ar that still carry an edit-SE copy (§4.16 strategy b).
func (s *Store) ListFinalizedWithEditCopy(ctx context.Context) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM file_registry
		WHERE finalized_mode IS NOT NULL AND soft_deleted_at IS NULL`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing finalized entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *Store) MarkSoftDeleted(ctx context.Context, fileID uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE file_registry SET soft_deleted_at = $2 WHERE file_id = $1`, fileID, at)
	if err != nil {
		return fmt.Errorf("marking file registry entry soft-deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) ClearFinalizedMode(ctx context.Context, fileID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE file_registry SET finalized_mode = NULL WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("clearing finalized_mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const orphanColumns = `element_id, storage_path, first_observed_at, last_observed_at, observation_count`

func scanOrphan(row pgx.Row) (OrphanObservation, error) {
	var o OrphanObservation
	err := row.Scan(&o.ElementID, &o.StoragePath, &o.FirstObservedAt, &o.LastObservedAt, &o.ObservationCount)
	return o, err
}

func scanOrphans(rows pgx.Rows) ([]OrphanObservation, error) {
	defer rows.Close()
	var items []OrphanObservation
	for rows.Next() {
		o, err := scanOrphan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning orphan observation row: %w", err)
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orphan observation rows: %w", err)
	}
	return items, nil
}

// RecordObservation inserts a new observation on first sighting, or bumps
// observation_count/last_observed_at on a repeat sighting (§4.16 strategy
// c, §4.18).
func (s *Store) RecordObservation(ctx context.Context, elementID uuid.UUID, storagePath string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orphan_observations (element_id, storage_path, first_observed_at, last_observed_at, observation_count)
		VALUES ($1, $2, $3, $3, 1)
		ON CONFLICT (element_id, storage_path) DO UPDATE SET
			last_observed_at = $3,
			observation_count = orphan_observations.observation_count + 1`,
		elementID, storagePath, now)
	if err != nil {
		return fmt.Errorf("recording orphan observation: %w", err)
	}
	return nil
}

func (s *Store) ListOrphanObservations(ctx context.Context) ([]OrphanObservation, error) {
	query := `SELECT ` + orphanColumns + ` FROM orphan_observations`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing orphan observations: %w", err)
	}
	return scanOrphans(rows)
}

func (s *Store) DeleteObservation(ctx context.Context, elementID uuid.UUID, storagePath string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM orphan_observations WHERE element_id = $1 AND storage_path = $2`, elementID, storagePath)
	if err != nil {
		return fmt.Errorf("deleting orphan observation: %w", err)
	}
	return nil
}
