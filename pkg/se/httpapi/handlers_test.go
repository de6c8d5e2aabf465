package httpapi

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/backend"
	"github.com/BigKAA/artStore-sub005/pkg/cache"
	"github.com/BigKAA/artStore-sub005/pkg/fileengine"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

type fakeEngine struct {
	uploadRes  fileengine.UploadResult
	uploadErr  error
	metadata   model.File
	metaErr    error
	downloadRes fileengine.DownloadResult
	downloadErr error
	updateRes  model.File
	updateErr  error
	deleteErr  error
	deleteSawAdmin bool
	searchRes  httpserver.LimitOffsetPage[model.File]
	searchErr  error
}

func (f *fakeEngine) Upload(ctx context.Context, req fileengine.UploadRequest, r io.Reader) (fileengine.UploadResult, error) {
	return f.uploadRes, f.uploadErr
}
func (f *fakeEngine) Download(ctx context.Context, fileID uuid.UUID, rng *backend.ByteRange) (fileengine.DownloadResult, error) {
	return f.downloadRes, f.downloadErr
}
func (f *fakeEngine) GetMetadata(ctx context.Context, fileID uuid.UUID) (model.File, error) {
	return f.metadata, f.metaErr
}
func (f *fakeEngine) UpdateMetadata(ctx context.Context, fileID uuid.UUID, attrs model.Attributes) (model.File, error) {
	return f.updateRes, f.updateErr
}
func (f *fakeEngine) Delete(ctx context.Context, fileID uuid.UUID, isAdminServiceAccount bool) error {
	f.deleteSawAdmin = isAdminServiceAccount
	return f.deleteErr
}
func (f *fakeEngine) Search(ctx context.Context, p cache.SearchParams) (httpserver.LimitOffsetPage[model.File], error) {
	return f.searchRes, f.searchErr
}

type fakeSync struct{}

func (fakeSync) FullRebuild(ctx context.Context) (cache.RebuildStats, error)        { return cache.RebuildStats{}, nil }
func (fakeSync) IncrementalRebuild(ctx context.Context) (cache.RebuildStats, error) { return cache.RebuildStats{}, nil }
func (fakeSync) ConsistencyCheck(ctx context.Context) (cache.ConsistencyReport, error) {
	return cache.ConsistencyReport{}, nil
}
func (fakeSync) ExpiredCleanup(ctx context.Context) (int64, error) { return 0, nil }

type fakeInfo struct{}

func (fakeInfo) Info(ctx context.Context) (InfoResponse, error) {
	return InfoResponse{Name: "se-01", Status: "operational"}, nil
}
func (fakeInfo) Capacity(ctx context.Context) (CapacityResponse, error) {
	return CapacityResponse{CapacityTotal: 100, CapacityFree: 50, Status: "operational"}, nil
}

type fakeBackend struct {
	deleted []string
	exists  bool
}

func (b *fakeBackend) Write(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	return 0, nil
}
func (b *fakeBackend) Read(ctx context.Context, relPath string, rng *backend.ByteRange) (io.ReadCloser, error) {
	return nil, nil
}
func (b *fakeBackend) Delete(ctx context.Context, relPath string) error {
	b.deleted = append(b.deleted, relPath)
	return nil
}
func (b *fakeBackend) Exists(ctx context.Context, relPath string) (bool, error) {
	return b.exists, nil
}
func (b *fakeBackend) Capacity(ctx context.Context) (backend.Capacity, error) {
	return backend.Capacity{}, nil
}

type fakeKeySource struct {
	keys *jwtauth.KeySet
}

func (f fakeKeySource) KeySet() *jwtauth.KeySet { return f.keys }

func newTestRouter(t *testing.T, h *Handler, role string) (chi.Router, string) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key, err := jwtauth.GenerateKey(now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	keys := jwtauth.NewKeySet([]jwtauth.Key{key})

	issuer := jwtauth.NewIssuer(keys)
	token, err := issuer.Issue(uuid.NewString(), jwtauth.Claims{
		Type: jwtauth.PrincipalServiceAccount,
		Role: role,
	}, time.Hour, now)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	auth := NewAuthenticator(fakeKeySource{keys: keys})
	router := chi.NewRouter()
	Mount(router, h, auth)
	return router, token
}

func TestHandleInfo_Unauthenticated(t *testing.T) {
	h := &Handler{Info: fakeInfo{}}
	router, _ := newTestRouter(t, h, "ADMIN")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestHandleCapacity_Unauthenticated(t *testing.T) {
	h := &Handler{Info: fakeInfo{}}
	router, _ := newTestRouter(t, h, "ADMIN")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/capacity", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHandleUpload_MissingBearerRejected(t *testing.T) {
	h := &Handler{Info: fakeInfo{}, Engine: &fakeEngine{}}
	router, _ := newTestRouter(t, h, "ADMIN")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "hello.txt")
	_, _ = part.Write([]byte("hello world"))
	_ = mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized && w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 401/400; body = %s", w.Code, w.Body.String())
	}
}

func TestHandleUpload_WithBearerSucceeds(t *testing.T) {
	eng := &fakeEngine{uploadRes: fileengine.UploadResult{FileID: uuid.New()}}
	h := &Handler{Info: fakeInfo{}, Engine: eng}
	router, token := newTestRouter(t, h, "USER")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "hello.txt")
	_, _ = part.Write([]byte("hello world"))
	_ = mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestHandleDelete_ReadOnlyRoleRejected(t *testing.T) {
	eng := &fakeEngine{}
	h := &Handler{Info: fakeInfo{}, Engine: eng}
	router, token := newTestRouter(t, h, "READONLY")

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+uuid.NewString(), nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusForbidden, w.Body.String())
	}
}

func TestHandleDelete_AdminServiceAccountPassedThrough(t *testing.T) {
	eng := &fakeEngine{}
	h := &Handler{Info: fakeInfo{}, Engine: eng}
	router, token := newTestRouter(t, h, "ADMIN")

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+uuid.NewString(), nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusNoContent, w.Body.String())
	}
	if !eng.deleteSawAdmin {
		t.Error("Engine.Delete() did not receive isAdminServiceAccount=true for ADMIN role")
	}
}

func TestHandleGCDelete_RequiresSAAdminScope(t *testing.T) {
	be := &fakeBackend{}
	h := &Handler{Info: fakeInfo{}, GC: be}
	router, token := newTestRouter(t, h, "USER")

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/gc/somefile.dat", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if len(be.deleted) != 0 {
		t.Error("backend.Delete() called despite missing sa:admin scope")
	}
}

func TestHandleGCExists_AdminScopeSucceeds(t *testing.T) {
	be := &fakeBackend{exists: true}
	h := &Handler{Info: fakeInfo{}, GC: be}
	router, token := newTestRouter(t, h, "ADMIN")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/gc/2026/01/01/00/somefile.dat", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestHandleSearch_ParsesQueryParams(t *testing.T) {
	eng := &fakeEngine{searchRes: httpserver.LimitOffsetPage[model.File]{Items: []model.File{}}}
	h := &Handler{Info: fakeInfo{}, Engine: eng}
	router, token := newTestRouter(t, h, "AUDITOR")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/files?q=report&tags=a,b&size_min=10", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
}
