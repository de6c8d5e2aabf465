package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/admin/adminuser"
	"github.com/BigKAA/artStore-sub005/pkg/admin/auth"
	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// tokenIssuer is the subset of *tokenservice.Service the auth handlers call
// through.
type tokenIssuer interface {
	IssueServiceAccountTokens(ctx context.Context, clientID, clientSecret string, now time.Time) (jwtauth.TokenPair, error)
	IssueAdminUserTokens(ctx context.Context, username, password string, now time.Time) (jwtauth.TokenPair, error)
	IssuePairForToken(tok jwtauth.Token, now time.Time) (jwtauth.TokenPair, error)
	Validate(raw string, now time.Time) (jwtauth.Token, error)
}

type authHandler struct {
	tokens     tokenIssuer
	adminUsers *adminuser.Service
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func toTokenResponse(p jwtauth.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, TokenType: p.TokenType, ExpiresIn: p.ExpiresIn}
}

// serviceAccountTokenRequest is the POST /auth/token body (§6.2, OAuth2
// client-credentials shape).
type serviceAccountTokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

func (h *authHandler) handleServiceAccountToken(w http.ResponseWriter, r *http.Request) {
	var req serviceAccountTokenRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	pair, err := h.tokens.IssueServiceAccountTokens(r.Context(), req.ClientID, req.ClientSecret, time.Now().UTC())
	if err != nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_credentials", "client_id/client_secret invalid or suspended")
		return
	}
	httpserver.Respond(w, http.StatusOK, toTokenResponse(pair))
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *authHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	pair, err := h.tokens.IssueAdminUserTokens(r.Context(), req.Username, req.Password, time.Now().UTC())
	if err != nil {
		if apperr.Is(err, apperr.AccountLocked) {
			status, code := apperr.HTTPStatus(err)
			httpserver.RespondError(w, status, code, apperr.Message(err))
			return
		}
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_credentials", "username/password invalid, account disabled, or locked out")
		return
	}
	httpserver.Respond(w, http.StatusOK, toTokenResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// handleRefresh validates the presented refresh token and re-issues a
// fresh access+refresh pair carrying the same claims, rather than
// extending the original pair's lifetime.
func (h *authHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	now := time.Now().UTC()
	tok, err := h.tokens.Validate(req.RefreshToken, now)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_token", "refresh token invalid or expired")
		return
	}

	pair, err := h.tokens.IssuePairForToken(tok, now)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_token", "unable to refresh token")
		return
	}
	httpserver.Respond(w, http.StatusOK, toTokenResponse(pair))
}

// handleLogout is stateless: the Admin Token Service issues short-lived
// access tokens and relies on key rotation plus TTL expiry, so there is no
// server-side session to revoke (§4.11). Present for API symmetry with
// /admin-auth/login.
func (h *authHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *authHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	resp, err := h.adminUsers.GetByUsername(r.Context(), principal.Subject)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "admin user not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

type changeOwnPasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=12"`
}

func (h *authHandler) handleChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	var req changeOwnPasswordRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.adminUsers.GetByUsername(r.Context(), principal.Subject)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "admin user not found")
		return
	}
	if err := h.adminUsers.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.NewPassword); err != nil {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "password changed"})
}
