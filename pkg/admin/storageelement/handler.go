package storageelement

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/admin/auth"
)

// Handler provides HTTP handlers for the storage-elements API (§6.2).
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, pool *pgxpool.Pool, notifier Notifier) *Handler {
	return &Handler{logger: logger, service: NewService(pool, notifier, logger)}
}

// Routes returns a chi.Router with every storage-element route mounted,
// gated by scope per-method: listing and stats require only read,
// registration/sync require manage, and deletion additionally checks the
// super_admin role at the handler (§4.15).
func (h *Handler) Routes(a *auth.Authenticator) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(a.RequireScope(auth.ScopeStorageElementRead))
		r.Get("/", h.handleList)
		r.Get("/stats/summary", h.handleStats)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(a.RequireScope(auth.ScopeStorageElementManage))
		r.Post("/", h.handleRegister)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/discover", h.handleDiscover)
		r.Post("/sync/{id}", h.handleSync)
		r.Post("/sync-all", h.handleSyncAll)
	})
	r.Group(func(r chi.Router) {
		r.Use(a.RequireScope(auth.ScopeStorageElementDelete))
		r.Delete("/{id}", h.handleDelete)
	})
	return r
}

func (h *Handler) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	resp, err := h.service.Discover(r.Context(), req)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadGateway, "discovery_failed", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid storage element id")
		return
	}
	if err := h.service.SyncByID(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "storage element not found")
			return
		}
		httpserver.RespondError(w, http.StatusBadGateway, "sync_failed", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "synced"})
}

func (h *Handler) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.SyncAll(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to sync storage elements")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"status": "synced", "count": count})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Stats(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to compute storage element stats")
		return
	}
	httpserver.Respond(w, http.StatusOK, summary)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.logger.Error("registering storage element", "error", err)
		httpserver.RespondError(w, http.StatusBadGateway, "registration_failed", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid storage element id")
		return
	}

	resp, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "storage element not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid storage element id")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "storage element not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("listing storage elements", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list storage elements")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"storage_elements": items, "count": len(items)})
}

// handleDelete requires the scope-authorization middleware upstream to have
// already confirmed the requester holds the super_admin role; it reads
// that decision from the request context set by that middleware.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid storage element id")
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, principal.IsSuperAdmin()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "storage element not found")
			return
		}
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}
