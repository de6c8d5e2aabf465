package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/admin/storageelement"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// elementsStore is the subset of *storageelement.Store the internal
// fallback handlers call through, kept narrow for unit testing with a
// fake.
type elementsStore interface {
	List(ctx context.Context) ([]storageelement.StorageElement, error)
	Get(ctx context.Context, id uuid.UUID) (storageelement.StorageElement, error)
}

// internalHandler serves the §6.2 internal fallback routes Storage
// Elements and other Admin-aware callers use to resolve storage element
// placement directly from Postgres when the Redis-backed registry (§4.7)
// is unavailable.
type internalHandler struct {
	elements elementsStore
}

// handleAvailable lists operational storage elements in the requested
// mode with at least min_free_bytes of unused capacity, mirroring
// registry.Client.AvailableByPriority's contract without Redis.
func (h *internalHandler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	mode := model.Mode(r.URL.Query().Get("mode"))
	minFree, _ := strconv.ParseInt(r.URL.Query().Get("min_free_bytes"), 10, 64)

	all, err := h.elements.List(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list storage elements")
		return
	}

	out := make([]storageelement.Response, 0, len(all))
	for _, se := range all {
		if se.Status != storageelement.StatusOperational {
			continue
		}
		if mode != "" && se.Mode != mode {
			continue
		}
		if free := se.CapacityTotal - se.CapacityUsed; free < minFree {
			continue
		}
		out = append(out, se.ToResponse())
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"storage_elements": out, "count": len(out)})
}

func (h *internalHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "element_id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid storage element id")
		return
	}
	se, err := h.elements.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "storage element not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, se.ToResponse())
}
