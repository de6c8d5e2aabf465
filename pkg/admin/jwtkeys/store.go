// Package jwtkeys persists the Admin RS256 key set and runs the scheduled
// rotator (§3.6, §4.11, §4.12): generate, promote to primary, retire on a
// safety window, all behind the shared rotation lock so two rotations never
// overlap.
package jwtkeys

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

const columns = `version, private_key_pem, public_key_pem, created_at, expires_at, is_active`

// Store persists JWT key rows in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore builds a Store over the admin_jwt_keys table.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanKey(row pgx.Row) (jwtauth.Key, error) {
	var k jwtauth.Key
	err := row.Scan(&k.Version, &k.PrivateKeyPEM, &k.PublicKeyPEM, &k.CreatedAt, &k.ExpiresAt, &k.IsActive)
	return k, err
}

// Insert persists a freshly generated key.
func (s *Store) Insert(ctx context.Context, k jwtauth.Key) error {
	query := `INSERT INTO admin_jwt_keys (` + columns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, query, k.Version, k.PrivateKeyPEM, k.PublicKeyPEM, k.CreatedAt, k.ExpiresAt, k.IsActive); err != nil {
		return fmt.Errorf("inserting jwt key: %w", err)
	}
	return nil
}

// All returns every persisted key, active or not, for building a
// jwtauth.KeySet.
func (s *Store) All(ctx context.Context) ([]jwtauth.Key, error) {
	query := `SELECT ` + columns + ` FROM admin_jwt_keys ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing jwt keys: %w", err)
	}
	defer rows.Close()

	var out []jwtauth.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning jwt key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Deactivate marks a key inactive (§4.12 step 4: "mark expired keys
// inactive"). Actual deletion is a separate, deferred operation.
func (s *Store) Deactivate(ctx context.Context, version uuid.UUID) error {
	query := `UPDATE admin_jwt_keys SET is_active = false WHERE version = $1`
	if _, err := s.pool.Exec(ctx, query, version); err != nil {
		return fmt.Errorf("deactivating jwt key: %w", err)
	}
	return nil
}

// DeleteExpiredBefore physically removes inactive keys whose expiry plus
// the safety window has passed (§4.12 step 4's "deferred by a configurable
// safety window").
func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM admin_jwt_keys WHERE is_active = false AND expires_at < $1`
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging retired jwt keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
