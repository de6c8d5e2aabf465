package adminuser

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

// Handler provides HTTP handlers for the admin-users API (§6.2).
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, pool *pgxpool.Pool) *Handler {
	return &Handler{logger: logger, service: NewService(pool, logger)}
}

// Routes returns a chi.Router with every admin-user route mounted, gated
// by scope per-method: listing requires only read, everything that
// mutates an admin user requires manage (§4.14).
func (h *Handler) Routes(a *auth.Authenticator) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(a.RequireScope(auth.ScopeAdminUserRead))
		r.Get("/", h.handleList)
	})
	r.Group(func(r chi.Router) {
		r.Use(a.RequireScope(auth.ScopeAdminUserManage))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/password", h.handleChangePassword)
		r.Post("/{id}/reset-password", h.handleResetPassword)
		r.Post("/{id}/role", h.handleSetRole)
		r.Delete("/{id}", h.handleDelete)
	})
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("creating admin user", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create admin user")
		return
	}
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("listing admin users", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list admin users")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"admin_users": items, "count": len(items)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid admin user id")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "admin user not found")
			return
		}
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid admin user id")
		return
	}

	var req ChangePasswordRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "admin user not found")
			return
		}
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "password changed"})
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=12"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid admin user id")
		return
	}

	var req resetPasswordRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), id, req.NewPassword); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "admin user not found")
			return
		}
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "password reset"})
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=super_admin admin readonly"`
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid admin user id")
		return
	}

	var req setRoleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SetRole(r.Context(), id, Role(req.Role)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "admin user not found")
			return
		}
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"role": req.Role})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid admin user id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "admin user not found")
			return
		}
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}
