package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/backend"
	"github.com/BigKAA/artStore-sub005/pkg/cache"
	"github.com/BigKAA/artStore-sub005/pkg/fileengine"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// engine is the subset of *fileengine.Engine the handlers call through,
// kept narrow for unit testing with a fake.
type engine interface {
	Upload(ctx context.Context, req fileengine.UploadRequest, r io.Reader) (fileengine.UploadResult, error)
	Download(ctx context.Context, fileID uuid.UUID, rng *backend.ByteRange) (fileengine.DownloadResult, error)
	GetMetadata(ctx context.Context, fileID uuid.UUID) (model.File, error)
	UpdateMetadata(ctx context.Context, fileID uuid.UUID, attrs model.Attributes) (model.File, error)
	Delete(ctx context.Context, fileID uuid.UUID, isAdminServiceAccount bool) error
	Search(ctx context.Context, p cache.SearchParams) (httpserver.LimitOffsetPage[model.File], error)
}

// synchronizer is the subset of *cache.Synchronizer the admin cache
// endpoints call through.
type synchronizer interface {
	FullRebuild(ctx context.Context) (cache.RebuildStats, error)
	IncrementalRebuild(ctx context.Context) (cache.RebuildStats, error)
	ConsistencyCheck(ctx context.Context) (cache.ConsistencyReport, error)
	ExpiredCleanup(ctx context.Context) (int64, error)
}

// infoProvider supplies the discovery/capacity payloads (§6.3).
type infoProvider interface {
	Info(ctx context.Context) (InfoResponse, error)
	Capacity(ctx context.Context) (CapacityResponse, error)
}

// Handler wires together the Storage Element's HTTP surface.
type Handler struct {
	Engine engine
	Sync   synchronizer
	Info   infoProvider
	GC     backend.Backend // physical delete target for /gc/{id}
	Logger *slog.Logger
}

// Mount registers every §6.1 route under /api/v1 on r, guarded by auth
// where required.
func Mount(r chi.Router, h *Handler, auth *Authenticator) {
	r.Get("/api/v1/info", h.handleInfo)
	r.Get("/api/v1/capacity", h.handleCapacity)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(scopeFileCreate))
		r.Post("/api/v1/files/upload", h.handleUpload)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(scopeFileRead))
		r.Get("/api/v1/files/{id}", h.handleGetMetadata)
		r.Get("/api/v1/files/{id}/download", h.handleDownload)
		r.Get("/api/v1/files", h.handleSearch)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(scopeFileUpdate))
		r.Patch("/api/v1/files/{id}", h.handleUpdateMetadata)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(scopeFileDelete))
		r.Delete("/api/v1/files/{id}", h.handleDelete)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(scopeSAAdmin))
		r.Post("/api/v1/cache/rebuild", h.handleCacheRebuild)
		r.Post("/api/v1/cache/rebuild/incremental", h.handleCacheRebuildIncremental)
		r.Get("/api/v1/cache/consistency", h.handleCacheConsistency)
		r.Post("/api/v1/cache/cleanup-expired", h.handleCacheCleanupExpired)
		r.Delete("/api/v1/gc/*", h.handleGCDelete)
		r.Get("/api/v1/gc/*", h.handleGCExists)
	})
}

func parseFileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid file id")
		return uuid.UUID{}, false
	}
	return id, true
}

// sniffLimit caps how many leading bytes are buffered for MIME sniffing
// when the client omits Content-Type, matching mimetype's own read window.
const sniffLimit = 3072

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	const maxMultipartMemory = 32 << 20
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing file part")
		return
	}
	defer file.Close()

	uploadedBy := r.FormValue("uploaded_by")
	if uploadedBy == "" {
		if p, ok := principalFromContext(r.Context()); ok {
			uploadedBy = p.Subject
		}
	}

	var uploadReader io.Reader = file
	var mimeType *string
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		mimeType = &ct
	} else {
		head := make([]byte, sniffLimit)
		n, _ := io.ReadFull(file, head)
		head = head[:n]
		detected := mimetype.Detect(head)
		mt := detected.String()
		mimeType = &mt
		uploadReader = io.MultiReader(bytes.NewReader(head), file)
	}

	var tags []string
	if tagsRaw := r.FormValue("tags"); tagsRaw != "" {
		tags = strings.Split(tagsRaw, ",")
	}
	var description *string
	if d := r.FormValue("description"); d != "" {
		description = &d
	}
	var custom map[string]any
	if c := r.FormValue("custom"); c != "" {
		if err := json.Unmarshal([]byte(c), &custom); err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "custom must be a JSON object")
			return
		}
	}

	res, err := h.Engine.Upload(r.Context(), fileengine.UploadRequest{
		OriginalFilename: header.Filename,
		UploadedBy:       uploadedBy,
		MimeType:         mimeType,
		Description:      description,
		Tags:             tags,
		Custom:           custom,
		DeclaredSize:     header.Size,
	}, uploadReader)
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, res)
}

func (h *Handler) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}
	f, err := h.Engine.GetMetadata(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, f)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}

	var rng *backend.ByteRange
	if header := r.Header.Get("Range"); header != "" {
		parsed, err := parseRangeHeader(header)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid range header")
			return
		}
		rng = parsed
	}

	dl, err := h.Engine.Download(r.Context(), id, rng)
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	defer dl.Reader.Close()

	w.Header().Set("ETag", `"`+dl.File.SHA256Hash+`"`)
	if dl.File.MimeType != nil {
		w.Header().Set("Content-Type", *dl.File.MimeType)
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.File.OriginalFilename+`"`)
	if rng != nil {
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = io.Copy(w, dl.Reader)
}

// parseRangeHeader parses a single-range "bytes=start-end" header (RFC 7233
// single-range semantics, §4.3).
func parseRangeHeader(header string) (*backend.ByteRange, error) {
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, apperr.New(apperr.Validation, "malformed range header")
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "malformed range start")
	}
	end := int64(-1)
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, apperr.New(apperr.Validation, "malformed range end")
		}
	}
	return &backend.ByteRange{Start: start, End: end}, nil
}

// updateMetadataRequest is the PATCH /files/{id} body (§4.4).
type updateMetadataRequest struct {
	Description   *string        `json:"description,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	RetentionDays *int           `json:"retention_days,omitempty" validate:"omitempty,min=1"`
	Custom        map[string]any `json:"custom,omitempty"`
}

func (h *Handler) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}
	var req updateMetadataRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	f, err := h.Engine.UpdateMetadata(r.Context(), id, model.Attributes{
		Description:   req.Description,
		Tags:          req.Tags,
		RetentionDays: req.RetentionDays,
		Custom:        req.Custom,
	})
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, f)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}
	p, _ := principalFromContext(r.Context())
	if err := h.Engine.Delete(r.Context(), id, p.IsAdminServiceAccount); err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := httpserver.ParseLimitOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	q := r.URL.Query()
	params := cache.SearchParams{
		Query:      q.Get("q"),
		UploadedBy: q.Get("uploaded_by"),
		Page:       page,
	}
	if tagsRaw := q.Get("tags"); tagsRaw != "" {
		params.Tags = strings.Split(tagsRaw, ",")
	}
	if v := q.Get("size_min"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.SizeMin = &n
		}
	}
	if v := q.Get("size_max"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.SizeMax = &n
		}
	}
	if v := q.Get("uploaded_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.UploadedFrom = &t
		}
	}
	if v := q.Get("uploaded_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.UploadedTo = &t
		}
	}

	result, err := h.Engine.Search(r.Context(), params)
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

func (h *Handler) handleCacheRebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Sync.FullRebuild(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusAccepted, stats)
}

func (h *Handler) handleCacheRebuildIncremental(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Sync.IncrementalRebuild(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}

func (h *Handler) handleCacheConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.Sync.ConsistencyCheck(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, report)
}

func (h *Handler) handleCacheCleanupExpired(w http.ResponseWriter, r *http.Request) {
	n, err := h.Sync.ExpiredCleanup(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handleGCDelete physically removes an object by relative storage path,
// called only by the Admin garbage collector (§4.16) after it has already
// decided the object is safe to remove. The path is carried as a chi
// wildcard rather than a single {id} segment since storage paths are
// hour-bucketed directories (§4.1) and so contain slashes.
func (h *Handler) handleGCDelete(w http.ResponseWriter, r *http.Request) {
	relPath := chi.URLParam(r, "*")
	if err := h.GC.Delete(r.Context(), relPath); err != nil {
		httpserver.RespondAppError(w, r, apperr.Wrap(apperr.BackendUnavailable, "deleting object", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGCExists(w http.ResponseWriter, r *http.Request) {
	relPath := chi.URLParam(r, "*")
	exists, err := h.GC.Exists(r.Context(), relPath)
	if err != nil {
		httpserver.RespondAppError(w, r, apperr.Wrap(apperr.BackendUnavailable, "checking object existence", err))
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"exists": exists})
}

// InfoResponse is the §6.3 discovery payload.
type InfoResponse struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Version      string `json:"version"`
	Mode         string `json:"mode"`
	StorageType  string `json:"storage_type"`
	BasePath     string `json:"base_path"`
	CapacityByte int64  `json:"capacity_bytes"`
	UsedBytes    int64  `json:"used_bytes"`
	FileCount    int64  `json:"file_count"`
	Status       string `json:"status"`
}

// CapacityResponse is the compact §6.1 GET /capacity view.
type CapacityResponse struct {
	CapacityTotal   int64   `json:"capacity_total"`
	CapacityUsed    int64   `json:"capacity_used"`
	CapacityFree    int64   `json:"capacity_free"`
	CapacityPercent float64 `json:"capacity_percent"`
	Status          string  `json:"status"`
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.Info.Info(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, info)
}

func (h *Handler) handleCapacity(w http.ResponseWriter, r *http.Request) {
	c, err := h.Info.Capacity(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, c)
}
