// Package cache implements the Storage Element metadata-cache: a
// recomputable Postgres mirror of sidecar files (§3.2) plus the
// synchronizer that keeps it eventually consistent (§4.9).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// Store provides metadata-cache persistence for a single Storage Element
// instance, against the table "{prefix}_files".
type Store struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewStore creates a Store for the table "{prefix}_files".
func NewStore(pool *pgxpool.Pool, prefix string) *Store {
	return &Store{pool: pool, tableName: prefix + "_files"}
}

// Upsert materializes row into the cache table, replacing any existing row
// for the same FileID (§4.2 step 7, §4.9). Last-writer-wins is keyed by
// CacheUpdatedAt: a concurrent write carrying an older timestamp than the
// row already stored is silently dropped rather than clobbering it.
func (s *Store) Upsert(ctx context.Context, row model.CacheRow) error {
	tagsJSON, err := json.Marshal(row.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	customJSON, err := json.Marshal(row.Custom)
	if err != nil {
		return fmt.Errorf("marshaling custom: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			file_id, original_filename, storage_filename, storage_path, size_bytes,
			mime_type, sha256_hash, uploaded_by, uploaded_at, expires_at,
			description, tags, custom, cache_updated_at, cache_ttl_hours
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (file_id) DO UPDATE SET
			original_filename = EXCLUDED.original_filename,
			storage_filename = EXCLUDED.storage_filename,
			storage_path = EXCLUDED.storage_path,
			size_bytes = EXCLUDED.size_bytes,
			mime_type = EXCLUDED.mime_type,
			sha256_hash = EXCLUDED.sha256_hash,
			uploaded_by = EXCLUDED.uploaded_by,
			uploaded_at = EXCLUDED.uploaded_at,
			expires_at = EXCLUDED.expires_at,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			custom = EXCLUDED.custom,
			cache_updated_at = EXCLUDED.cache_updated_at,
			cache_ttl_hours = EXCLUDED.cache_ttl_hours
		WHERE EXCLUDED.cache_updated_at > %[1]s.cache_updated_at`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		row.FileID, row.OriginalFilename, row.StorageFilename, row.StoragePath, row.SizeBytes,
		row.MimeType, row.SHA256Hash, row.UploadedBy, row.UploadedAt, row.ExpiresAt,
		row.Description, tagsJSON, customJSON, row.CacheUpdatedAt, row.CacheTTLHours,
	)
	if err != nil {
		return fmt.Errorf("upserting cache row %s: %w", row.FileID, err)
	}
	return nil
}

// Get returns the cache row for fileID, or apperr.NotFound if absent.
func (s *Store) Get(ctx context.Context, fileID uuid.UUID) (model.CacheRow, error) {
	query := fmt.Sprintf(`
		SELECT file_id, original_filename, storage_filename, storage_path, size_bytes,
			mime_type, sha256_hash, uploaded_by, uploaded_at, expires_at,
			description, tags, custom, cache_updated_at, cache_ttl_hours
		FROM %s WHERE file_id = $1`, s.tableName)

	row, err := s.scanRow(s.pool.QueryRow(ctx, query, fileID))
	if err == pgx.ErrNoRows {
		return model.CacheRow{}, apperr.New(apperr.NotFound, "cache row not found")
	}
	if err != nil {
		return model.CacheRow{}, fmt.Errorf("getting cache row %s: %w", fileID, err)
	}
	return row, nil
}

// Delete removes the cache row for fileID. Absence is not an error (§4.5:
// delete removes the cache row as one of several steps).
func (s *Store) Delete(ctx context.Context, fileID uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE file_id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, fileID); err != nil {
		return fmt.Errorf("deleting cache row %s: %w", fileID, err)
	}
	return nil
}

// Truncate empties the cache table, the first step of a full rebuild
// (§4.9 P1).
func (s *Store) Truncate(ctx context.Context) error {
	query := fmt.Sprintf(`TRUNCATE TABLE %s`, s.tableName)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("truncating cache table: %w", err)
	}
	return nil
}

// ListFileIDs returns every file_id currently cached, used by the
// consistency check to detect orphan_cache rows (§4.9 P2).
func (s *Store) ListFileIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`SELECT file_id FROM %s`, s.tableName)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing cache file ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning cache file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListExpired returns cache rows whose TTL has elapsed as of now, used by
// both the expired-cleanup operation (§4.9 P4) and the consistency check's
// expired_cache count (§4.9 P2).
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`
		SELECT file_id FROM %s
		WHERE cache_updated_at + (cache_ttl_hours * interval '1 hour') < $1`, s.tableName)

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("listing expired cache rows: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning expired cache file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteByIDs deletes the given cache rows, returning the count removed
// (§4.9 P4: informational, never touches sidecars).
func (s *Store) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE file_id = ANY($1)`, s.tableName)
	tag, err := s.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting expired cache rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) scanRow(row pgx.Row) (model.CacheRow, error) {
	var (
		r          model.CacheRow
		tagsJSON   []byte
		customJSON []byte
	)
	err := row.Scan(
		&r.FileID, &r.OriginalFilename, &r.StorageFilename, &r.StoragePath, &r.SizeBytes,
		&r.MimeType, &r.SHA256Hash, &r.UploadedBy, &r.UploadedAt, &r.ExpiresAt,
		&r.Description, &tagsJSON, &customJSON, &r.CacheUpdatedAt, &r.CacheTTLHours,
	)
	if err != nil {
		return model.CacheRow{}, err
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &r.Tags); err != nil {
			return model.CacheRow{}, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}
	if len(customJSON) > 0 {
		if err := json.Unmarshal(customJSON, &r.Custom); err != nil {
			return model.CacheRow{}, fmt.Errorf("unmarshaling custom: %w", err)
		}
	}
	return r, nil
}
