// Package wal implements the per-Storage-Element write-ahead log store
// (§3.3): at most one non-terminal row per file_id at a time, read/written
// against a Postgres table whose name carries the SE's instance-specific
// prefix (§6.6).
package wal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// Store provides WAL persistence for a single Storage Element instance.
// tableName is resolved once at construction time from the SE's configured
// prefix, never composed inline in a query string built at declaration
// time.
type Store struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewStore creates a WAL Store for the table "{prefix}_wal".
func NewStore(pool *pgxpool.Pool, prefix string) *Store {
	return &Store{pool: pool, tableName: prefix + "_wal"}
}

// uniqueViolation is the Postgres error code for a unique constraint
// violation, used here to detect a race against
// idx_{prefix}_wal_file_id_inflight.
const uniqueViolation = "23505"

// Open begins a new WAL entry in status pending, enforcing the "at most one
// non-terminal row per file_id" invariant (§3.3) when fileID is non-nil. The
// hasNonTerminal check below rejects the common case cheaply; the partial
// unique index on file_id (migration 000001) is what actually guarantees
// the invariant when two Open calls for the same file_id race each other.
func (s *Store) Open(ctx context.Context, opType model.OperationType, fileID *uuid.UUID, payload any) (model.WALEntry, error) {
	if fileID != nil {
		inFlight, err := s.hasNonTerminal(ctx, *fileID)
		if err != nil {
			return model.WALEntry{}, err
		}
		if inFlight {
			return model.WALEntry{}, apperr.New(apperr.ConflictWALInFlight, "a mutating operation is already in flight for this file")
		}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return model.WALEntry{}, fmt.Errorf("marshaling WAL payload: %w", err)
	}

	entry := model.WALEntry{
		TransactionID: uuid.New(),
		OperationType: opType,
		Status:        model.WALPending,
		FileID:        fileID,
		Payload:       payloadJSON,
		CreatedAt:     time.Now().UTC(),
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (transaction_id, operation_type, status, file_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING wal_id`, s.tableName)

	err = s.pool.QueryRow(ctx, query,
		entry.TransactionID, entry.OperationType, entry.Status, entry.FileID, entry.Payload, entry.CreatedAt,
	).Scan(&entry.WALID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.WALEntry{}, apperr.New(apperr.ConflictWALInFlight, "a mutating operation is already in flight for this file")
		}
		return model.WALEntry{}, fmt.Errorf("opening WAL entry: %w", err)
	}

	return entry, nil
}

func (s *Store) hasNonTerminal(ctx context.Context, fileID uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`
		SELECT 1 FROM %s
		WHERE file_id = $1 AND status NOT IN ('committed', 'rolled_back', 'failed')
		LIMIT 1`, s.tableName)

	var exists int
	err := s.pool.QueryRow(ctx, query, fileID).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking in-flight WAL: %w", err)
	}
	return true, nil
}

// Commit transitions a WAL entry to committed.
func (s *Store) Commit(ctx context.Context, walID int64) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE %s SET status = $1, committed_at = $2 WHERE wal_id = $3`, s.tableName)
	_, err := s.pool.Exec(ctx, query, model.WALCommitted, now, walID)
	if err != nil {
		return fmt.Errorf("committing WAL entry %d: %w", walID, err)
	}
	return nil
}

// RollBack transitions a WAL entry to rolled_back, recording what was
// compensated (§4.2 failure policy, §4.5).
func (s *Store) RollBack(ctx context.Context, walID int64, compensation any) error {
	data, err := json.Marshal(compensation)
	if err != nil {
		return fmt.Errorf("marshaling compensation data: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE %s SET status = $1, compensation_data = $2, committed_at = $3 WHERE wal_id = $4`, s.tableName)
	_, err = s.pool.Exec(ctx, query, model.WALRolledBack, data, now, walID)
	if err != nil {
		return fmt.Errorf("rolling back WAL entry %d: %w", walID, err)
	}
	return nil
}

// Fail transitions a WAL entry to failed.
func (s *Store) Fail(ctx context.Context, walID int64) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE %s SET status = $1, committed_at = $2 WHERE wal_id = $3`, s.tableName)
	_, err := s.pool.Exec(ctx, query, model.WALFailed, now, walID)
	if err != nil {
		return fmt.Errorf("failing WAL entry %d: %w", walID, err)
	}
	return nil
}

// LatestUploadStoragePath returns the storage_path recorded when fileID was
// uploaded, read from the most recent committed upload WAL row. This lets a
// cache miss fall back to the sidecar directly (§4.3) without a directory
// scan: the cache row may have expired or never been rebuilt, but the WAL
// payload survives independently of it.
func (s *Store) LatestUploadStoragePath(ctx context.Context, fileID uuid.UUID) (string, error) {
	query := fmt.Sprintf(`
		SELECT payload FROM %s
		WHERE file_id = $1 AND operation_type = $2 AND status = $3
		ORDER BY wal_id DESC
		LIMIT 1`, s.tableName)

	var raw json.RawMessage
	err := s.pool.QueryRow(ctx, query, fileID, model.OpUpload, model.WALCommitted).Scan(&raw)
	if err == pgx.ErrNoRows {
		return "", apperr.New(apperr.NotFound, "no committed upload found for file")
	}
	if err != nil {
		return "", fmt.Errorf("looking up upload storage path: %w", err)
	}

	var payload model.UploadPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("parsing upload payload: %w", err)
	}
	return payload.StoragePath, nil
}

// PurgeTerminalOlderThan deletes terminal WAL rows created before cutoff
// (§4.2: "WAL rows older than a configured retention are garbage-collected
// once terminal").
func (s *Store) PurgeTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE created_at < $1 AND status IN ('committed', 'rolled_back', 'failed')`, s.tableName)

	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging terminal WAL entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
