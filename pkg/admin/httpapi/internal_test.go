package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/admin/storageelement"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

type fakeElementsStore struct {
	elements []storageelement.StorageElement
}

func (f fakeElementsStore) List(ctx context.Context) ([]storageelement.StorageElement, error) {
	return f.elements, nil
}

func (f fakeElementsStore) Get(ctx context.Context, id uuid.UUID) (storageelement.StorageElement, error) {
	for _, se := range f.elements {
		if se.ID == id {
			return se, nil
		}
	}
	return storageelement.StorageElement{}, errNotFound{}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func TestHandleAvailableFiltersByModeStatusAndFreeBytes(t *testing.T) {
	operationalID := uuid.New()
	store := fakeElementsStore{elements: []storageelement.StorageElement{
		{ID: operationalID, Mode: model.ModeRW, Status: storageelement.StatusOperational, CapacityTotal: 1000, CapacityUsed: 100},
		{ID: uuid.New(), Mode: model.ModeRW, Status: storageelement.StatusOffline, CapacityTotal: 1000, CapacityUsed: 0},
		{ID: uuid.New(), Mode: model.ModeRO, Status: storageelement.StatusOperational, CapacityTotal: 1000, CapacityUsed: 0},
		{ID: uuid.New(), Mode: model.ModeRW, Status: storageelement.StatusOperational, CapacityTotal: 1000, CapacityUsed: 950},
	}}
	h := &internalHandler{elements: store}

	r := chi.NewRouter()
	r.Get("/available", h.handleAvailable)

	req := httptest.NewRequest(http.MethodGet, "/available?mode=rw&min_free_bytes=500", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !contains(body, operationalID.String()) {
		t.Fatalf("expected the single eligible element %s in response, got %s", operationalID, body)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestHandleGetReturns404ForUnknownID(t *testing.T) {
	h := &internalHandler{elements: fakeElementsStore{}}
	r := chi.NewRouter()
	r.Get("/{element_id}", h.handleGet)

	req := httptest.NewRequest(http.MethodGet, "/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
