// Package fileengine orchestrates the Storage Element's core
// upload/download/update/delete/search protocols (§4.2-§4.6), tying
// together naming, locking, sidecar, backend, WAL, cache, and mode
// packages into the single write/read path every HTTP handler calls
// through.
package fileengine

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/backend"
	"github.com/BigKAA/artStore-sub005/pkg/cache"
	"github.com/BigKAA/artStore-sub005/pkg/mode"
	"github.com/BigKAA/artStore-sub005/pkg/model"
	"github.com/BigKAA/artStore-sub005/pkg/namefmt"
	"github.com/BigKAA/artStore-sub005/pkg/sidecar"
)

// walStore is the subset of *wal.Store the engine depends on, kept narrow
// so tests can substitute a fake instead of a live Postgres pool.
type walStore interface {
	Open(ctx context.Context, opType model.OperationType, fileID *uuid.UUID, payload any) (model.WALEntry, error)
	Commit(ctx context.Context, walID int64) error
	RollBack(ctx context.Context, walID int64, compensation any) error
	Fail(ctx context.Context, walID int64) error
	LatestUploadStoragePath(ctx context.Context, fileID uuid.UUID) (string, error)
}

// cacheStore is the subset of *cache.Store the engine depends on.
type cacheStore interface {
	Upsert(ctx context.Context, row model.CacheRow) error
	Get(ctx context.Context, fileID uuid.UUID) (model.CacheRow, error)
	Delete(ctx context.Context, fileID uuid.UUID) error
	Search(ctx context.Context, p cache.SearchParams) (cache.SearchResult, error)
}

// rebuilder is the subset of *cache.Synchronizer the engine depends on for
// lazy rebuild on cache-row expiry (§4.9 P3).
type rebuilder interface {
	LazyRebuild(ctx context.Context, sidecarPath string) (bool, error)
}

// Engine is the Storage Element's file orchestration core.
type Engine struct {
	Backend       backend.Backend
	WAL           walStore
	Cache         cacheStore
	Sync          rebuilder
	Mode          *mode.Controller
	MaxObjectSize int64
	RetentionDays int
	CacheTTLHours func() int
	Logger        *slog.Logger
}

// UploadResult is the §4.2 step 9 response shape.
type UploadResult struct {
	FileID          uuid.UUID
	StorageFilename string
	SizeBytes       int64
	SHA256          string
}

// UploadRequest carries upload(stream, metadata) inputs (§4.2).
type UploadRequest struct {
	OriginalFilename string
	UploadedBy       string
	MimeType         *string
	Description      *string
	Tags             []string
	Custom           map[string]any
	DeclaredSize     int64
}

// Upload implements the full §4.2 protocol.
func (e *Engine) Upload(ctx context.Context, req UploadRequest, r io.Reader) (UploadResult, error) {
	if err := e.Mode.Allow(mode.OpCreate, false); err != nil {
		return UploadResult{}, err
	}

	c, err := e.Backend.Capacity(ctx)
	if err != nil {
		return UploadResult{}, apperr.Wrap(apperr.BackendUnavailable, "checking backend capacity", err)
	}
	if c.FreeBytes < req.DeclaredSize {
		return UploadResult{}, apperr.New(apperr.InsufficientStorage, "not enough free space for declared upload size")
	}

	now := time.Now().UTC()
	fileID := uuid.New()
	reservationID := uuid.New()
	dir := namefmt.DirectoryPrefix(now)
	storageFilename := namefmt.StorageFilename(req.OriginalFilename, req.UploadedBy, now, fileID)
	storagePath := dir + "/" + storageFilename
	sidecarPath := namefmt.SidecarFilename(storagePath)

	entry, err := e.WAL.Open(ctx, model.OpUpload, &fileID, model.UploadPayload{
		ReservationID:   reservationID,
		StoragePath:     storagePath,
		StorageFilename: storageFilename,
	})
	if err != nil {
		return UploadResult{}, err
	}

	sha256Hasher := sha256.New()
	md5Hasher := md5.New()
	tee := io.TeeReader(r, io.MultiWriter(sha256Hasher, md5Hasher))
	limited := tee
	maxRead := e.MaxObjectSize
	if maxRead > 0 {
		limited = io.LimitReader(tee, maxRead+1)
	}

	written, err := e.Backend.Put(ctx, storagePath, limited)
	if err != nil {
		e.rollbackUpload(ctx, entry.WALID, storagePath, false, "writing object: "+err.Error())
		return UploadResult{}, apperr.Wrap(apperr.BackendUnavailable, "writing object", err)
	}
	if maxRead > 0 && written > maxRead {
		e.rollbackUpload(ctx, entry.WALID, storagePath, false, "object exceeds max upload size")
		return UploadResult{}, apperr.New(apperr.AttrTooLarge, "object exceeds maximum allowed upload size")
	}

	sha256Hash := hex.EncodeToString(sha256Hasher.Sum(nil))
	md5Hash := hex.EncodeToString(md5Hasher.Sum(nil))

	f := model.File{
		FileID:           fileID,
		OriginalFilename: req.OriginalFilename,
		StorageFilename:  storageFilename,
		StoragePath:      storagePath,
		SizeBytes:        written,
		MimeType:         req.MimeType,
		SHA256Hash:       sha256Hash,
		MD5Hash:          &md5Hash,
		UploadedBy:       req.UploadedBy,
		UploadedAt:       now,
		RetentionDays:    e.RetentionDays,
		ExpiresAt:        now.Add(time.Duration(e.RetentionDays) * 24 * time.Hour),
		Version:          1,
		SchemaVersion:    model.SchemaV2,
		Description:      req.Description,
		Tags:             req.Tags,
		Custom:           req.Custom,
	}

	sidecarData, err := sidecar.Marshal(f)
	if err != nil {
		e.rollbackUpload(ctx, entry.WALID, storagePath, true, "sidecar too large")
		return UploadResult{}, apperr.Wrap(apperr.AttrTooLarge, "sidecar exceeds size limit", err)
	}
	if _, err := e.Backend.Put(ctx, sidecarPath, bytes.NewReader(sidecarData)); err != nil {
		e.rollbackUpload(ctx, entry.WALID, storagePath, true, "writing sidecar: "+err.Error())
		return UploadResult{}, apperr.Wrap(apperr.BackendUnavailable, "writing sidecar", err)
	}

	row := model.FromFile(f, e.CacheTTLHours(), now)
	if err := e.Cache.Upsert(ctx, row); err != nil && e.Logger != nil {
		e.Logger.Warn("cache upsert failed after upload, will be repaired by rebuild", "file_id", fileID, "error", err)
	}

	if err := e.WAL.Commit(ctx, entry.WALID); err != nil && e.Logger != nil {
		e.Logger.Warn("WAL commit failed after successful upload", "file_id", fileID, "error", err)
	}

	return UploadResult{FileID: fileID, StorageFilename: storageFilename, SizeBytes: written, SHA256: sha256Hash}, nil
}

func (e *Engine) rollbackUpload(ctx context.Context, walID int64, storagePath string, objectWritten bool, reason string) {
	objectRemoved := false
	if objectWritten {
		if err := e.Backend.Delete(ctx, storagePath); err == nil {
			objectRemoved = true
		}
	} else {
		_ = e.Backend.Delete(ctx, storagePath)
		objectRemoved = true
	}
	comp := model.UploadCompensation{TempRemoved: true, ObjectRemoved: objectRemoved, Reason: reason}
	if err := e.WAL.RollBack(ctx, walID, comp); err != nil && e.Logger != nil {
		e.Logger.Error("rolling back WAL after failed upload", "wal_id", walID, "error", err)
	}
}

// DownloadResult carries the opened reader and the metadata callers need to
// set response headers (§4.3).
type DownloadResult struct {
	File   model.File
	Reader io.ReadCloser
}

// Download implements §4.3: cache-first lookup, lazy rebuild on expiry,
// sidecar fallback, ar-mode gone_archived, and ranged reads.
func (e *Engine) Download(ctx context.Context, fileID uuid.UUID, rng *backend.ByteRange) (DownloadResult, error) {
	if err := e.Mode.Allow(mode.OpRead, false); err != nil {
		return DownloadResult{}, err
	}
	if e.Mode.Mode() == model.ModeAR {
		return DownloadResult{}, apperr.New(apperr.GoneArchived, "object is archived; a restore has been queued")
	}

	f, err := e.resolveFile(ctx, fileID)
	if err != nil {
		return DownloadResult{}, err
	}

	if rng != nil {
		if rng.Start >= f.SizeBytes || (rng.End != -1 && rng.End < rng.Start) {
			return DownloadResult{}, apperr.New(apperr.RangeNotSatisfiable, fmt.Sprintf("range start %d outside object of %d bytes", rng.Start, f.SizeBytes))
		}
	}

	rc, err := e.Backend.Get(ctx, f.StoragePath, rng)
	if err != nil {
		var rangeErr *backend.ErrRangeNotSatisfiable
		if errors.As(err, &rangeErr) {
			return DownloadResult{}, apperr.New(apperr.RangeNotSatisfiable, fmt.Sprintf("range outside object of %d bytes", rangeErr.Size))
		}
		return DownloadResult{}, apperr.Wrap(apperr.BackendUnavailable, "reading object", err)
	}
	return DownloadResult{File: f, Reader: rc}, nil
}

// GetMetadata returns a File's metadata without opening the object bytes
// (§6.1 GET /files/{id}).
func (e *Engine) GetMetadata(ctx context.Context, fileID uuid.UUID) (model.File, error) {
	if err := e.Mode.Allow(mode.OpRead, false); err != nil {
		return model.File{}, err
	}
	return e.resolveFile(ctx, fileID)
}

// resolveFile looks up the cache row; if expired it attempts a
// non-blocking lazy rebuild and serves the (possibly stale) row either
// way, falling back to reading the sidecar directly when no cache row
// exists at all (§4.3).
func (e *Engine) resolveFile(ctx context.Context, fileID uuid.UUID) (model.File, error) {
	row, err := e.Cache.Get(ctx, fileID)
	if err == nil {
		if row.Expired(time.Now().UTC()) && e.Sync != nil {
			sidecarPath := namefmt.SidecarFilename(row.StoragePath)
			if ok, _ := e.Sync.LazyRebuild(ctx, sidecarPath); ok {
				if refreshed, rerr := e.Cache.Get(ctx, fileID); rerr == nil {
					row = refreshed
				}
			}
		}
		return cacheRowToFile(row), nil
	}
	if !apperr.Is(err, apperr.NotFound) {
		return model.File{}, err
	}

	// Cache miss: the sidecar remains authoritative (§4.3). Recover the
	// storage path from the WAL's committed upload record rather than
	// scanning the backend, then read the sidecar directly.
	storagePath, err := e.WAL.LatestUploadStoragePath(ctx, fileID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return model.File{}, apperr.New(apperr.NotFound, "file not found")
		}
		return model.File{}, err
	}

	rc, err := e.Backend.Get(ctx, namefmt.SidecarFilename(storagePath), nil)
	if err != nil {
		return model.File{}, apperr.New(apperr.NotFound, "file not found")
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return model.File{}, apperr.Wrap(apperr.BackendUnavailable, "reading sidecar", err)
	}
	f, err := sidecar.Unmarshal(data)
	if err != nil {
		return model.File{}, apperr.Wrap(apperr.BackendUnavailable, "parsing sidecar", err)
	}

	row := model.FromFile(f, e.CacheTTLHours(), time.Now().UTC())
	if err := e.Cache.Upsert(ctx, row); err != nil && e.Logger != nil {
		e.Logger.Warn("cache upsert failed after sidecar fallback read", "file_id", fileID, "error", err)
	}

	return f, nil
}

func cacheRowToFile(row model.CacheRow) model.File {
	return model.File{
		FileID:           row.FileID,
		OriginalFilename: row.OriginalFilename,
		StorageFilename:  row.StorageFilename,
		StoragePath:      row.StoragePath,
		SizeBytes:        row.SizeBytes,
		MimeType:         row.MimeType,
		SHA256Hash:       row.SHA256Hash,
		UploadedBy:       row.UploadedBy,
		UploadedAt:       row.UploadedAt,
		ExpiresAt:        row.ExpiresAt,
		SchemaVersion:    model.SchemaV2,
		Description:      row.Description,
		Tags:             row.Tags,
		Custom:           row.Custom,
	}
}

// UpdateMetadata implements §4.4: WAL pending, rewrite sidecar atomically,
// update cache, WAL commit.
func (e *Engine) UpdateMetadata(ctx context.Context, fileID uuid.UUID, attrs model.Attributes) (model.File, error) {
	if err := e.Mode.Allow(mode.OpUpdate, false); err != nil {
		return model.File{}, err
	}

	f, err := e.resolveFile(ctx, fileID)
	if err != nil {
		return model.File{}, err
	}

	entry, err := e.WAL.Open(ctx, model.OpUpdateMetadata, &fileID, attrs)
	if err != nil {
		return model.File{}, err
	}

	attrs.Apply(&f)

	sidecarData, err := sidecar.Marshal(f)
	if err != nil {
		_ = e.WAL.Fail(ctx, entry.WALID)
		return model.File{}, apperr.Wrap(apperr.AttrTooLarge, "sidecar exceeds size limit", err)
	}
	if _, err := e.Backend.Put(ctx, namefmt.SidecarFilename(f.StoragePath), bytes.NewReader(sidecarData)); err != nil {
		_ = e.WAL.Fail(ctx, entry.WALID)
		return model.File{}, apperr.Wrap(apperr.BackendUnavailable, "writing updated sidecar", err)
	}

	row := model.FromFile(f, e.CacheTTLHours(), time.Now().UTC())
	if err := e.Cache.Upsert(ctx, row); err != nil && e.Logger != nil {
		e.Logger.Warn("cache upsert failed after metadata update", "file_id", fileID, "error", err)
	}

	if err := e.WAL.Commit(ctx, entry.WALID); err != nil && e.Logger != nil {
		e.Logger.Warn("WAL commit failed after metadata update", "file_id", fileID, "error", err)
	}

	return f, nil
}

// Delete implements §4.5. isAdminServiceAccount gates rw-mode delete per
// the mode matrix.
func (e *Engine) Delete(ctx context.Context, fileID uuid.UUID, isAdminServiceAccount bool) error {
	if err := e.Mode.Allow(mode.OpDelete, isAdminServiceAccount); err != nil {
		return err
	}

	f, err := e.resolveFile(ctx, fileID)
	if err != nil {
		return err
	}
	sidecarPath := namefmt.SidecarFilename(f.StoragePath)

	entry, err := e.WAL.Open(ctx, model.OpDelete, &fileID, nil)
	if err != nil {
		return err
	}

	comp := model.DeleteCompensation{StoragePath: f.StoragePath, StorageFilename: f.StorageFilename}

	if err := e.Cache.Delete(ctx, fileID); err != nil && e.Logger != nil {
		e.Logger.Warn("cache delete failed during file delete", "file_id", fileID, "error", err)
	}

	if err := e.Backend.Delete(ctx, sidecarPath); err != nil {
		_ = e.WAL.RollBack(ctx, entry.WALID, comp)
		return apperr.Wrap(apperr.BackendUnavailable, "deleting sidecar", err)
	}
	comp.SidecarDeleted = true

	if err := e.Backend.Delete(ctx, f.StoragePath); err != nil {
		// Sidecar is already gone: per §4.5, the object is now an orphan for
		// GC strategy (c) to clean up later, not something we can roll back.
		_ = e.WAL.RollBack(ctx, entry.WALID, comp)
		return apperr.Wrap(apperr.BackendUnavailable, "deleting object, orphan left for GC", err)
	}
	comp.ObjectDeleted = true

	if err := e.WAL.Commit(ctx, entry.WALID); err != nil && e.Logger != nil {
		e.Logger.Warn("WAL commit failed after delete", "file_id", fileID, "error", err)
	}
	return nil
}

// Search delegates to the cache store's full-text/filter/pagination query
// (§4.6).
func (e *Engine) Search(ctx context.Context, p cache.SearchParams) (httpserver.LimitOffsetPage[model.File], error) {
	if err := e.Mode.Allow(mode.OpRead, false); err != nil {
		return httpserver.LimitOffsetPage[model.File]{}, err
	}

	result, err := e.Cache.Search(ctx, p)
	if err != nil {
		return httpserver.LimitOffsetPage[model.File]{}, fmt.Errorf("searching files: %w", err)
	}

	files := make([]model.File, 0, len(result.Rows))
	for _, row := range result.Rows {
		files = append(files, cacheRowToFile(row))
	}
	return httpserver.NewLimitOffsetPage(files, p.Page, result.TotalItems), nil
}
