package adminuser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/BigKAA/artStore-sub005/pkg/apperr"
)

// Service encapsulates AdminUser business logic and its §4.14 lockout
// state machine.
type Service struct {
	store  *Store
	logger *slog.Logger
}

func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// GetByUsername backs the `/admin-auth/me` endpoint, which resolves the
// caller's own record from their token subject.
func (s *Service) GetByUsername(ctx context.Context, username string) (Response, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return Response{}, fmt.Errorf("looking up admin user: %w", err)
	}
	return u.ToResponse(), nil
}

func (s *Service) List(ctx context.Context) ([]Response, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing admin users: %w", err)
	}
	items := make([]Response, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.ToResponse())
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Response, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	u := AdminUser{
		ID:              uuid.New(),
		Username:        req.Username,
		Email:           req.Email,
		PasswordHash:    string(hash),
		Role:            Role(req.Role),
		Enabled:         true,
		PasswordHistory: []string{},
		CreatedAt:       now,
	}

	created, err := s.store.Create(ctx, u)
	if err != nil {
		return Response{}, fmt.Errorf("creating admin user: %w", err)
	}
	return created.ToResponse(), nil
}

// Login implements §4.14's lockout state machine: on success it resets the
// failure counter; on failure it increments the counter within the
// failed-login window and locks the account once it reaches
// maxFailedLogins.
func (s *Service) Login(ctx context.Context, username, password string, now time.Time) (AdminUser, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return AdminUser{}, fmt.Errorf("invalid username or password: %w", err)
	}

	if !u.CanLogin(now) {
		if u.LockedUntil != nil && now.Before(*u.LockedUntil) {
			return AdminUser{}, apperr.New(apperr.AccountLocked, fmt.Sprintf("account locked until %s", u.LockedUntil.Format(time.RFC3339)))
		}
		return AdminUser{}, fmt.Errorf("account %s is disabled", u.Username)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if failErr := s.recordFailure(ctx, u, now); failErr != nil && s.logger != nil {
			s.logger.Error("recording login failure", "error", failErr, "username", username)
		}
		return AdminUser{}, fmt.Errorf("invalid username or password")
	}

	if err := s.store.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return AdminUser{}, fmt.Errorf("recording login success: %w", err)
	}
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	return u, nil
}

func (s *Service) recordFailure(ctx context.Context, u AdminUser, now time.Time) error {
	count := u.FailedLoginCount + 1
	since := u.FailedLoginSince
	if since.IsZero() || now.Sub(since) > failedLoginWindow {
		since = now
		count = 1
	}

	var lockedUntil *time.Time
	if count >= maxFailedLogins {
		until := now.Add(lockoutDuration)
		lockedUntil = &until
	}

	return s.store.RecordLoginFailure(ctx, u.ID, count, since, lockedUntil)
}

// ChangePassword rejects a new password matching any of the last
// passwordHistoryDepth bcrypt hashes under a constant-time compare (§4.14).
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up admin user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect")
	}

	if matchesHistory(newPassword, u.PasswordHash, u.PasswordHistory) {
		return fmt.Errorf("new password matches one of the last %d passwords", passwordHistoryDepth)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}

	history := append([]string{u.PasswordHash}, u.PasswordHistory...)
	if len(history) > passwordHistoryDepth {
		history = history[:passwordHistoryDepth]
	}

	return s.store.UpdatePassword(ctx, id, string(newHash), history)
}

// ResetPassword is the admin-initiated counterpart to ChangePassword
// (§6.2 `POST /admin-users/{id}/reset-password`): it skips the
// current-password check since the caller is an operator acting on
// another account, but still enforces the last-5-passwords history rule.
func (s *Service) ResetPassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up admin user: %w", err)
	}

	if matchesHistory(newPassword, u.PasswordHash, u.PasswordHistory) {
		return fmt.Errorf("new password matches one of the last %d passwords", passwordHistoryDepth)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}

	history := append([]string{u.PasswordHash}, u.PasswordHistory...)
	if len(history) > passwordHistoryDepth {
		history = history[:passwordHistoryDepth]
	}

	return s.store.UpdatePassword(ctx, id, string(newHash), history)
}

func matchesHistory(candidatePassword, currentHash string, history []string) bool {
	if bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(candidatePassword)) == nil {
		return true
	}
	for _, h := range history {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(candidatePassword)) == nil {
			return true
		}
	}
	return false
}

// Update changes an AdminUser's email and enabled flag. is_system accounts
// may not be disabled (§4.14).
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Response, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("looking up admin user: %w", err)
	}
	if u.IsSystem && !req.Enabled {
		return Response{}, fmt.Errorf("system admin user %s cannot be disabled", u.Username)
	}
	updated, err := s.store.UpdateProfile(ctx, id, req.Email, req.Enabled)
	if err != nil {
		return Response{}, fmt.Errorf("updating admin user: %w", err)
	}
	return updated.ToResponse(), nil
}

// SetRole changes an AdminUser's role. is_system accounts may only remain
// super_admin (§4.14).
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role Role) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up admin user: %w", err)
	}
	if u.IsSystem && role != RoleSuperAdmin {
		return fmt.Errorf("system admin user %s must remain super_admin", u.Username)
	}
	return s.store.UpdateRole(ctx, id, role)
}

// Delete removes an AdminUser; is_system accounts are protected (§4.14).
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up admin user: %w", err)
	}
	if u.IsSystem {
		return fmt.Errorf("admin user %s is a protected system account and cannot be deleted", u.Username)
	}
	return s.store.Delete(ctx, id)
}
