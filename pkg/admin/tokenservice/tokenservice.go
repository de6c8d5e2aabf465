// Package tokenservice implements the §4.11 Admin Token Service: issuing
// service-account and admin-user token pairs, and validating bearer
// tokens against the active key set.
package tokenservice

import (
	"context"
	"fmt"
	"time"

	"github.com/BigKAA/artStore-sub005/pkg/admin/adminuser"
	"github.com/BigKAA/artStore-sub005/pkg/admin/serviceaccount"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// keySource supplies the current signing/validation key set.
type keySource interface {
	KeySet() *jwtauth.KeySet
}

// Service implements §4.11's issue/validate contract over the already-built
// ServiceAccount and AdminUser authentication services.
type Service struct {
	serviceAccounts *serviceaccount.Service
	adminUsers      *adminuser.Service
	keys            keySource
}

func NewService(serviceAccounts *serviceaccount.Service, adminUsers *adminuser.Service, keys keySource) *Service {
	return &Service{serviceAccounts: serviceAccounts, adminUsers: adminUsers, keys: keys}
}

// IssueServiceAccountTokens authenticates a client_id/client_secret pair
// and, on success, issues an access+refresh token pair carrying the
// service account's role, client_id, name, and rate_limit (§4.11).
func (s *Service) IssueServiceAccountTokens(ctx context.Context, clientID, clientSecret string, now time.Time) (jwtauth.TokenPair, error) {
	sa, err := s.serviceAccounts.Authenticate(ctx, clientID, clientSecret, now)
	if err != nil {
		return jwtauth.TokenPair{}, fmt.Errorf("authenticating service account: %w", err)
	}

	issuer := jwtauth.NewIssuer(s.keys.KeySet())
	claims := jwtauth.Claims{
		Type:      jwtauth.PrincipalServiceAccount,
		Role:      string(sa.Role),
		ClientID:  sa.ClientID,
		Name:      sa.Name,
		RateLimit: sa.RateLimit,
	}
	return issuer.IssuePair(sa.ID.String(), claims, now)
}

// IssueAdminUserTokens authenticates a username/password pair and, on
// success, issues an access+refresh token pair whose subject is the
// username and whose type is admin_user (§4.11).
func (s *Service) IssueAdminUserTokens(ctx context.Context, username, password string, now time.Time) (jwtauth.TokenPair, error) {
	u, err := s.adminUsers.Login(ctx, username, password, now)
	if err != nil {
		return jwtauth.TokenPair{}, fmt.Errorf("authenticating admin user: %w", err)
	}

	issuer := jwtauth.NewIssuer(s.keys.KeySet())
	claims := jwtauth.Claims{
		Type: jwtauth.PrincipalAdminUser,
		Role: string(u.Role),
		Name: u.Username,
	}
	return issuer.IssuePair(u.Username, claims, now)
}

// IssuePairForToken re-issues a fresh access+refresh pair carrying the same
// claims as an already-validated token. Used by the refresh-token flow:
// the caller validates the presented refresh token first, then exchanges
// it for a new pair rather than extending the original one's lifetime.
func (s *Service) IssuePairForToken(tok jwtauth.Token, now time.Time) (jwtauth.TokenPair, error) {
	issuer := jwtauth.NewIssuer(s.keys.KeySet())
	return issuer.IssuePair(tok.Subject(), tok.Claims, now)
}

// Validate checks a bearer token against the active key set (§4.11:
// iterate active keys newest first, honoring the deactivated-key grace
// window already implemented in jwtauth.Validator).
func (s *Service) Validate(raw string, now time.Time) (jwtauth.Token, error) {
	validator := jwtauth.NewValidator(s.keys.KeySet())
	return validator.Validate(raw, now)
}
