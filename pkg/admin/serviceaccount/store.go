package serviceaccount

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const columns = `id, name, client_id, client_secret_hash, role, status, rate_limit,
	secret_changed_at, secret_expires_at, secret_history, is_system, created_at`

// Store persists ServiceAccounts in the Admin schema's service_accounts
// table, using the same hand-written pgxpool idiom as pkg/wal and
// pkg/admin/jwtkeys.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanRow(row pgx.Row) (ServiceAccount, error) {
	var sa ServiceAccount
	err := row.Scan(
		&sa.ID, &sa.Name, &sa.ClientID, &sa.ClientSecretHash, &sa.Role, &sa.Status, &sa.RateLimit,
		&sa.SecretChangedAt, &sa.SecretExpiresAt, &sa.SecretHistory, &sa.IsSystem, &sa.CreatedAt,
	)
	return sa, err
}

func scanRows(rows pgx.Rows) ([]ServiceAccount, error) {
	defer rows.Close()
	var items []ServiceAccount
	for rows.Next() {
		sa, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service account row: %w", err)
		}
		items = append(items, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating service account rows: %w", err)
	}
	return items, nil
}

func (s *Store) Create(ctx context.Context, sa ServiceAccount) (ServiceAccount, error) {
	query := `INSERT INTO service_accounts
		(id, name, client_id, client_secret_hash, role, status, rate_limit,
		 secret_changed_at, secret_expires_at, secret_history, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + columns

	row := s.pool.QueryRow(ctx, query,
		sa.ID, sa.Name, sa.ClientID, sa.ClientSecretHash, sa.Role, sa.Status, sa.RateLimit,
		sa.SecretChangedAt, sa.SecretExpiresAt, sa.SecretHistory, sa.IsSystem, sa.CreatedAt,
	)
	return scanRow(row)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (ServiceAccount, error) {
	query := `SELECT ` + columns + ` FROM service_accounts WHERE id = $1`
	return scanRow(s.pool.QueryRow(ctx, query, id))
}

func (s *Store) GetByClientID(ctx context.Context, clientID string) (ServiceAccount, error) {
	query := `SELECT ` + columns + ` FROM service_accounts WHERE client_id = $1`
	return scanRow(s.pool.QueryRow(ctx, query, clientID))
}

func (s *Store) List(ctx context.Context) ([]ServiceAccount, error) {
	query := `SELECT ` + columns + ` FROM service_accounts WHERE status != 'DELETED' ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing service accounts: %w", err)
	}
	return scanRows(rows)
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE service_accounts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating service account status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Update changes role and rate_limit in place.
func (s *Store) Update(ctx context.Context, id uuid.UUID, role Role, rateLimit int) (ServiceAccount, error) {
	query := `UPDATE service_accounts SET role = $2, rate_limit = $3 WHERE id = $1 RETURNING ` + columns
	return scanRow(s.pool.QueryRow(ctx, query, id, role, rateLimit))
}

// MarkExpired transitions every ACTIVE account whose secret_expires_at has
// passed to EXPIRED (§4.13), returning the number of rows changed.
func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_accounts SET status = 'EXPIRED'
		WHERE status = 'ACTIVE' AND secret_expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("marking expired service accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RotateSecret persists a new secret hash, history, and expiry, and moves
// the account back to ACTIVE (§4.13's EXPIRED -> ACTIVE transition).
func (s *Store) RotateSecret(ctx context.Context, id uuid.UUID, hash string, history []string, changedAt, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_accounts
		SET client_secret_hash = $2, secret_history = $3,
		    secret_changed_at = $4, secret_expires_at = $5, status = 'ACTIVE'
		WHERE id = $1`,
		id, hash, history, changedAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("rotating service account secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
