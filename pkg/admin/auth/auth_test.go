package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

func issueToken(t *testing.T, keys *jwtauth.KeySet, principalType jwtauth.PrincipalType, role string, now time.Time) string {
	t.Helper()
	issuer := jwtauth.NewIssuer(keys)
	token, err := issuer.Issue(uuid.NewString(), jwtauth.Claims{Type: principalType, Role: role}, time.Hour, now)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *jwtauth.KeySet, time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key, err := jwtauth.GenerateKey(now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	keys := jwtauth.NewKeySet([]jwtauth.Key{key})
	return NewAuthenticatorForKeySet(keys), keys, now
}

func TestRequireScopeRejectsMissingBearer(t *testing.T) {
	a, _, _ := newTestAuthenticator(t)
	called := false
	handler := a.RequireScope(ScopeAdminUserRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin-users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("handler was called without a bearer token")
	}
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401/403", rec.Code)
	}
}

func TestRequireScopeRejectsServiceAccountTokens(t *testing.T) {
	a, keys, now := newTestAuthenticator(t)
	token := issueToken(t, keys, jwtauth.PrincipalServiceAccount, "ADMIN", now)

	called := false
	handler := a.RequireScope(ScopeAdminUserRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin-users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("handler was called for a service-account token on the admin API")
	}
}

func TestRequireScopeReadonlyCannotManage(t *testing.T) {
	a, keys, now := newTestAuthenticator(t)
	token := issueToken(t, keys, jwtauth.PrincipalAdminUser, "readonly", now)

	called := false
	handler := a.RequireScope(ScopeAdminUserManage)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin-users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("readonly principal was allowed to reach a manage-scoped handler")
	}
}

func TestRequireScopeSuperAdminCanDeleteStorageElement(t *testing.T) {
	a, keys, now := newTestAuthenticator(t)
	token := issueToken(t, keys, jwtauth.PrincipalAdminUser, "super_admin", now)

	var gotPrincipal Principal
	handler := a.RequireScope(ScopeStorageElementDelete)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/storage-elements/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if !gotPrincipal.IsSuperAdmin() {
		t.Error("PrincipalFromContext() did not carry the super_admin role through")
	}
}

func TestRequireScopeAdminCannotDeleteStorageElement(t *testing.T) {
	a, keys, now := newTestAuthenticator(t)
	token := issueToken(t, keys, jwtauth.PrincipalAdminUser, "admin", now)

	called := false
	handler := a.RequireScope(ScopeStorageElementDelete)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodDelete, "/storage-elements/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("admin (non-super_admin) principal was allowed to delete a storage element")
	}
}
