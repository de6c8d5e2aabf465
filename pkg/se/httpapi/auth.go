// Package httpapi mounts the Storage Element's chi routes (§6.1) on the
// shared internal/httpserver scaffolding: bearer-authenticated file
// operations, unauthenticated discovery/health, and SA-admin-only cache and
// GC operations.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// scope names the four permissions §6.1 attaches to routes.
type scope string

const (
	scopeFileCreate scope = "file:create"
	scopeFileRead   scope = "file:read"
	scopeFileUpdate scope = "file:update"
	scopeFileDelete scope = "file:delete"
	scopeSAAdmin    scope = "sa:admin"
)

// roleScopes maps a service-account/admin-user role (§3.5) to the scopes it
// carries. ADMIN and admin_user principals get every scope; USER gets
// read/write but not delete or cache/GC administration; AUDITOR and
// READONLY get read only.
var roleScopes = map[string]map[scope]bool{
	"ADMIN":      {scopeFileCreate: true, scopeFileRead: true, scopeFileUpdate: true, scopeFileDelete: true, scopeSAAdmin: true},
	"USER":       {scopeFileCreate: true, scopeFileRead: true, scopeFileUpdate: true},
	"AUDITOR":    {scopeFileRead: true},
	"READONLY":   {scopeFileRead: true},
	"admin_user": {scopeFileCreate: true, scopeFileRead: true, scopeFileUpdate: true, scopeFileDelete: true, scopeSAAdmin: true},
}

type contextKey string

const principalKey contextKey = "se_principal"

// Principal is the authenticated caller of an SE request.
type Principal struct {
	Subject               string
	Role                  string
	IsServiceAccount      bool
	IsAdminServiceAccount bool
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// keySource supplies the current validation key set; satisfied by
// *jwtauth.RemoteKeySetCache.
type keySource interface {
	KeySet() *jwtauth.KeySet
}

// Authenticator validates bearer tokens and enforces scope.
type Authenticator struct {
	Keys keySource
}

// NewAuthenticator builds an Authenticator over a live key source.
func NewAuthenticator(keys keySource) *Authenticator {
	return &Authenticator{Keys: keys}
}

// RequireScope returns middleware rejecting requests lacking a valid bearer
// token or the given scope.
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

			scopes := roleScopes[tok.Claims.Role]
			if !scopes[s] {
				httpserver.RespondAppError(w, r, apperr.New(apperr.Forbidden, "token lacks required scope"))
				return
			}

			p := Principal{
				Subject:          tok.Subject(),
				Role:             tok.Claims.Role,
				IsServiceAccount: tok.IsServiceAccount(),
			}
			p.IsAdminServiceAccount = p.IsServiceAccount && p.Role == "ADMIN"

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
