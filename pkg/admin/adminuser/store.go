package adminuser

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const columns = `id, username, email, password_hash, role, enabled,
	failed_login_count, failed_login_since, locked_until, last_login_at,
	password_history, is_system, created_at`

// Store persists AdminUsers in the Admin schema's admin_users table, using
// the same hand-written pgxpool idiom as pkg/admin/serviceaccount.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanRow(row pgx.Row) (AdminUser, error) {
	var u AdminUser
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Enabled,
		&u.FailedLoginCount, &u.FailedLoginSince, &u.LockedUntil, &u.LastLoginAt,
		&u.PasswordHistory, &u.IsSystem, &u.CreatedAt,
	)
	return u, err
}

func scanRows(rows pgx.Rows) ([]AdminUser, error) {
	defer rows.Close()
	var items []AdminUser
	for rows.Next() {
		u, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning admin user row: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admin user rows: %w", err)
	}
	return items, nil
}

func (s *Store) Create(ctx context.Context, u AdminUser) (AdminUser, error) {
	query := `INSERT INTO admin_users
		(id, username, email, password_hash, role, enabled,
		 failed_login_count, failed_login_since, locked_until, last_login_at,
		 password_history, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + columns

	row := s.pool.QueryRow(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.Enabled,
		u.FailedLoginCount, u.FailedLoginSince, u.LockedUntil, u.LastLoginAt,
		u.PasswordHistory, u.IsSystem, u.CreatedAt,
	)
	return scanRow(row)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (AdminUser, error) {
	query := `SELECT ` + columns + ` FROM admin_users WHERE id = $1`
	return scanRow(s.pool.QueryRow(ctx, query, id))
}

// GetByUsername looks up a user case-insensitively (§3.5: username is
// case-insensitive unique).
func (s *Store) GetByUsername(ctx context.Context, username string) (AdminUser, error) {
	query := `SELECT ` + columns + ` FROM admin_users WHERE lower(username) = lower($1)`
	return scanRow(s.pool.QueryRow(ctx, query, username))
}

func (s *Store) List(ctx context.Context) ([]AdminUser, error) {
	query := `SELECT ` + columns + ` FROM admin_users ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing admin users: %w", err)
	}
	return scanRows(rows)
}

// RecordLoginSuccess resets the failure counter and stamps last_login_at
// (§4.14).
func (s *Store) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE admin_users
		SET failed_login_count = 0, failed_login_since = NULL, locked_until = NULL, last_login_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("recording login success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RecordLoginFailure persists the updated failure count/window/lockout
// computed by the service layer's state machine.
func (s *Store) RecordLoginFailure(ctx context.Context, id uuid.UUID, count int, since time.Time, lockedUntil *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE admin_users
		SET failed_login_count = $2, failed_login_since = $3, locked_until = $4
		WHERE id = $1`, id, count, since, lockedUntil)
	if err != nil {
		return fmt.Errorf("recording login failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, history []string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE admin_users SET password_hash = $2, password_history = $3 WHERE id = $1`,
		id, hash, history)
	if err != nil {
		return fmt.Errorf("updating admin user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, email string, enabled bool) (AdminUser, error) {
	query := `UPDATE admin_users SET email = $2, enabled = $3 WHERE id = $1 RETURNING ` + columns
	return scanRow(s.pool.QueryRow(ctx, query, id, email, enabled))
}

func (s *Store) UpdateRole(ctx context.Context, id uuid.UUID, role Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE admin_users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("updating admin user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM admin_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting admin user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
