package serviceaccount

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Service encapsulates ServiceAccount business logic and its §4.13 state
// machine.
type Service struct {
	store  *Store
	logger *slog.Logger
}

func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// List returns every non-deleted ServiceAccount.
func (s *Service) List(ctx context.Context) ([]Response, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing service accounts: %w", err)
	}
	items := make([]Response, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.ToResponse())
	}
	return items, nil
}

// Create provisions a new ServiceAccount with a random secret, returned
// once in the response.
func (s *Service) Create(ctx context.Context, req CreateRequest, env string) (CreateResponse, error) {
	secret, hash, err := generateSecret()
	if err != nil {
		return CreateResponse{}, fmt.Errorf("generating service account secret: %w", err)
	}

	now := time.Now().UTC()
	sa := ServiceAccount{
		ID:               uuid.New(),
		Name:             req.Name,
		ClientID:         newClientID(env, req.Name),
		ClientSecretHash: hash,
		Role:             Role(req.Role),
		Status:           StatusActive,
		RateLimit:        req.RateLimit,
		SecretChangedAt:  now,
		SecretExpiresAt:  now.Add(secretTTL),
		SecretHistory:    []string{},
		CreatedAt:        now,
	}

	created, err := s.store.Create(ctx, sa)
	if err != nil {
		return CreateResponse{}, fmt.Errorf("creating service account: %w", err)
	}

	return CreateResponse{Response: created.ToResponse(), ClientSecret: secret}, nil
}

// Authenticate verifies a client_id/client_secret pair and returns the
// account if it can currently authenticate (§4.13's can_authenticate()).
func (s *Service) Authenticate(ctx context.Context, clientID, clientSecret string, now time.Time) (ServiceAccount, error) {
	sa, err := s.store.GetByClientID(ctx, clientID)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("looking up service account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(sa.ClientSecretHash), []byte(clientSecret)); err != nil {
		return ServiceAccount{}, fmt.Errorf("invalid client secret: %w", err)
	}
	if !sa.CanAuthenticate(now) {
		return ServiceAccount{}, fmt.Errorf("service account %s cannot authenticate: status=%s", sa.ClientID, sa.Status)
	}
	return sa, nil
}

// RotateSecret issues a fresh random secret, rejecting reuse of any of the
// last secretHistoryDepth hashes (§4.13).
func (s *Service) RotateSecret(ctx context.Context, id uuid.UUID) (string, error) {
	sa, err := s.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("looking up service account: %w", err)
	}

	var secret, hash string
	for attempts := 0; attempts < 5; attempts++ {
		secret, hash, err = generateSecret()
		if err != nil {
			return "", fmt.Errorf("generating new secret: %w", err)
		}
		if !matchesHistory(secret, sa.ClientSecretHash, sa.SecretHistory) {
			break
		}
	}

	history := appendHistory(sa.SecretHistory, sa.ClientSecretHash)
	now := time.Now().UTC()
	if err := s.store.RotateSecret(ctx, id, hash, history, now, now.Add(secretTTL)); err != nil {
		return "", fmt.Errorf("persisting rotated secret: %w", err)
	}
	return secret, nil
}

// Update changes a ServiceAccount's role and rate limit.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Response, error) {
	sa, err := s.store.Update(ctx, id, Role(req.Role), req.RateLimit)
	if err != nil {
		return Response{}, fmt.Errorf("updating service account: %w", err)
	}
	return sa.ToResponse(), nil
}

// Suspend moves a ServiceAccount to SUSPENDED; it can no longer authenticate.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID) error {
	return s.store.UpdateStatus(ctx, id, StatusSuspended)
}

// Delete soft-deletes a ServiceAccount; is_system accounts are protected.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	sa, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up service account: %w", err)
	}
	if sa.IsSystem {
		return fmt.Errorf("service account %s is a protected system account and cannot be deleted", sa.ClientID)
	}
	return s.store.UpdateStatus(ctx, id, StatusDeleted)
}

// ExpireStale transitions ACTIVE accounts whose secret has expired to
// EXPIRED; intended to run on a periodic sweep alongside the GC loop.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.MarkExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expiring stale service accounts: %w", err)
	}
	if n > 0 && s.logger != nil {
		s.logger.Info("expired stale service account secrets", "count", n)
	}
	return n, nil
}

// matchesHistory reports whether candidateSecret (plaintext) matches the
// current or any historical bcrypt hash, enforcing §4.13's not-in-last-5
// rule under a constant-time compare against each hash.
func matchesHistory(candidateSecret, currentHash string, history []string) bool {
	if bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(candidateSecret)) == nil {
		return true
	}
	for _, h := range history {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(candidateSecret)) == nil {
			return true
		}
	}
	return false
}

func appendHistory(history []string, latest string) []string {
	history = append([]string{latest}, history...)
	if len(history) > secretHistoryDepth {
		history = history[:secretHistoryDepth]
	}
	return history
}

// newClientID builds a client_id of the form sa_<env>_<name>_<rand> (§3.5).
func newClientID(env, name string) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return fmt.Sprintf("sa_%s_%s_%s", env, slug, randomSuffix())
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// generateSecret creates a random client secret and its bcrypt hash.
func generateSecret() (secret, hash string, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	secret = hex.EncodeToString(b)
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", "", err
	}
	return secret, string(hashBytes), nil
}
