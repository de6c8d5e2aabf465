package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// rotator is the subset of *jwtkeys.Rotator the jwt-keys handlers call
// through.
type rotator interface {
	Rotate(ctx context.Context, now time.Time) error
}

// keyCache is the subset of *jwtkeys.LocalKeySetCache the handlers call
// through: the current validation/signing set, refreshed after rotation.
type keyCache interface {
	KeySet() *jwtauth.KeySet
	Refresh(ctx context.Context) error
}

// keyHistory supplies every persisted key row, including retired ones, for
// GET /jwt-keys/history.
type keyHistory interface {
	All(ctx context.Context) ([]jwtauth.Key, error)
}

type jwtKeysHandler struct {
	cache   keyCache
	rotator rotator
	history keyHistory
}

// statusResponse is the GET /jwt-keys/status payload: enough to confirm
// the invariant "exactly one primary key, non-empty validation set"
// (§4.12) without exposing key material.
type statusResponse struct {
	PrimaryVersion string `json:"primary_version,omitempty"`
	ActiveCount    int    `json:"active_count"`
}

func (h *jwtKeysHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ks := h.cache.KeySet()
	resp := statusResponse{ActiveCount: len(ks.Active())}
	if primary, ok := ks.Primary(); ok {
		resp.PrimaryVersion = primary.Version.String()
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func toPublicDTO(k jwtauth.Key) jwtauth.PublicKeyDTO {
	return jwtauth.PublicKeyDTO{
		Version:      k.Version.String(),
		PublicKeyPEM: k.PublicKeyPEM,
		CreatedAt:    k.CreatedAt,
		ExpiresAt:    k.ExpiresAt,
		IsActive:     k.IsActive,
	}
}

// handleActive serves the §6.2 `/jwt-keys/active` payload that
// jwtauth.FetchActiveKeys on the Storage Element side decodes directly.
func (h *jwtKeysHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	active := h.cache.KeySet().Active()
	dtos := make([]jwtauth.PublicKeyDTO, 0, len(active))
	for _, k := range active {
		dtos = append(dtos, toPublicDTO(k))
	}
	httpserver.Respond(w, http.StatusOK, dtos)
}

func (h *jwtKeysHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	all, err := h.history.All(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list jwt key history")
		return
	}
	dtos := make([]jwtauth.PublicKeyDTO, 0, len(all))
	for _, k := range all {
		dtos = append(dtos, toPublicDTO(k))
	}
	httpserver.Respond(w, http.StatusOK, dtos)
}

// handleRotate triggers an on-demand rotation (§4.12) and refreshes the
// local cache so the new primary key is visible to this process
// immediately, rather than waiting for the next scheduled refresh.
func (h *jwtKeysHandler) handleRotate(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if err := h.rotator.Rotate(r.Context(), now); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "jwt key rotation failed")
		return
	}
	if err := h.cache.Refresh(r.Context()); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "jwt key rotation succeeded but refreshing the local cache failed")
		return
	}
	h.handleStatus(w, r)
}
