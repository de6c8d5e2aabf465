// Package auth implements bearer-token authentication and role-based
// authorization for the Admin HTTP surface (§6.2), mirroring
// pkg/se/httpapi's Authenticator but scoped to Admin resources
// (service accounts, admin users, storage elements, JWT keys) instead of
// file operations.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// scope names the permissions Admin routes attach to roles.
type scope string

const (
	ScopeServiceAccountRead   scope = "serviceaccount:read"
	ScopeServiceAccountManage scope = "serviceaccount:manage"
	ScopeAdminUserRead        scope = "adminuser:read"
	ScopeAdminUserManage      scope = "adminuser:manage"
	ScopeStorageElementRead   scope = "storageelement:read"
	ScopeStorageElementManage scope = "storageelement:manage"
	// ScopeStorageElementDelete is held only by super_admin (§4.15:
	// "Deletion ... role super_admin required").
	ScopeStorageElementDelete scope = "storageelement:delete"
	ScopeJWTKeyRead           scope = "jwtkey:read"
	ScopeJWTKeyManage         scope = "jwtkey:manage"
)

// roleScopes maps an AdminUser role (§3.5, §4.14) to the scopes it holds.
// super_admin holds every scope including storage-element deletion; admin
// holds every manage scope except that one; readonly holds only the read
// scopes.
var roleScopes = map[string]map[scope]bool{
	"super_admin": {
		ScopeServiceAccountRead: true, ScopeServiceAccountManage: true,
		ScopeAdminUserRead: true, ScopeAdminUserManage: true,
		ScopeStorageElementRead: true, ScopeStorageElementManage: true, ScopeStorageElementDelete: true,
		ScopeJWTKeyRead: true, ScopeJWTKeyManage: true,
	},
	"admin": {
		ScopeServiceAccountRead: true, ScopeServiceAccountManage: true,
		ScopeAdminUserRead: true, ScopeAdminUserManage: true,
		ScopeStorageElementRead: true, ScopeStorageElementManage: true,
		ScopeJWTKeyRead: true, ScopeJWTKeyManage: true,
	},
	"readonly": {
		ScopeServiceAccountRead: true, ScopeAdminUserRead: true,
		ScopeStorageElementRead: true, ScopeJWTKeyRead: true,
	},
}

type contextKey string

const principalKey contextKey = "admin_principal"

// Principal is the authenticated caller of an Admin API request.
type Principal struct {
	Subject string
	Role    string
}

// IsSuperAdmin reports whether the principal holds the super_admin role,
// the only role permitted to delete a Storage Element (§4.15) or an
// is_system-protected AdminUser (§4.14).
func (p Principal) IsSuperAdmin() bool { return p.Role == "super_admin" }

// PrincipalFromContext retrieves the authenticated Principal set by
// RequireScope.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// keySource supplies the current validation key set; satisfied by
// *jwtkeys.LocalKeySetCache (the Admin binary loads its own keys from its
// database, unlike Storage Elements, which fetch them remotely), by
// *jwtauth.RemoteKeySetCache, or by a fixed *jwtauth.KeySet wrapped in
// staticKeySource.
type keySource interface {
	KeySet() *jwtauth.KeySet
}

// staticKeySource adapts a fixed *jwtauth.KeySet to keySource.
type staticKeySource struct{ keys *jwtauth.KeySet }

func (s staticKeySource) KeySet() *jwtauth.KeySet { return s.keys }

// Authenticator validates Admin-issued bearer tokens and enforces scope.
type Authenticator struct {
	Keys keySource
}

// NewAuthenticator builds an Authenticator over a live key source.
func NewAuthenticator(keys keySource) *Authenticator {
	return &Authenticator{Keys: keys}
}

// NewAuthenticatorForKeySet is a convenience constructor for the common
// case where the Admin process holds its own KeySet directly.
func NewAuthenticatorForKeySet(keys *jwtauth.KeySet) *Authenticator {
	return &Authenticator{Keys: staticKeySource{keys: keys}}
}

// RequireScope returns middleware rejecting requests lacking a valid bearer
// token or the given scope. Only admin_user principals carry Admin scopes;
// a service_account token (minted for SE file access) is rejected here.
func (a *Authenticator) RequireScope(s scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				httpserver.RespondAppError(w, r, apperr.New(apperr.TokenInvalid, "missing bearer token"))
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			validator := jwtauth.NewValidator(a.Keys.KeySet())
			tok, err := validator.Validate(raw, time.Now().UTC())
			if err != nil {
				httpserver.RespondAppError(w, r, apperr.Wrap(apperr.TokenInvalid, "invalid or expired token", err))
				return
			}
			if tok.IsServiceAccount() {
				httpserver.RespondAppError(w, r, apperr.New(apperr.Forbidden, "service-account tokens cannot access the admin API"))
				return
			}

			scopes := roleScopes[tok.Claims.Role]
			if !scopes[s] {
				httpserver.RespondAppError(w, r, apperr.New(apperr.Forbidden, "token lacks required scope"))
				return
			}

			p := Principal{Subject: tok.Subject(), Role: tok.Claims.Role}
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
