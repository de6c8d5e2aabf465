package serviceaccount

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

// Handler provides HTTP handlers for the service-accounts API (§6.2).
type Handler struct {
	logger  *slog.Logger
	service *Service
	env     string
}

func NewHandler(logger *slog.Logger, pool *pgxpool.Pool, env string) *Handler {
	return &Handler{logger: logger, service: NewService(pool, logger), env: env}
}

// Routes returns a chi.Router with every service-account route mounted,
// gated by scope per-method: listing requires only read, everything that
// mutates a service account requires manage (§4.13).
func (h *Handler) Routes(a *auth.Authenticator) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(a.RequireScope(auth.ScopeServiceAccountRead))
		r.Get("/", h.handleList)
	})
	r.Group(func(r chi.Router) {
		r.Use(a.RequireScope(auth.ScopeServiceAccountManage))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/rotate-secret", h.handleRotateSecret)
		r.Post("/{id}/suspend", h.handleSuspend)
		r.Delete("/{id}", h.handleDelete)
	})
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), req, h.env)
	if err != nil {
		h.logger.Error("creating service account", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create service account")
		return
	}
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("listing service accounts", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list service accounts")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"service_accounts": items, "count": len(items)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid service account id")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "service account not found")
			return
		}
		h.logger.Error("updating service account", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update service account")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid service account id")
		return
	}

	secret, err := h.service.RotateSecret(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "service account not found")
			return
		}
		h.logger.Error("rotating service account secret", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to rotate secret")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"client_secret": secret})
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid service account id")
		return
	}

	if err := h.service.Suspend(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "service account not found")
			return
		}
		h.logger.Error("suspending service account", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to suspend service account")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": string(StatusSuspended)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid service account id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "service account not found")
			return
		}
		h.logger.Error("deleting service account", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete service account")
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}
