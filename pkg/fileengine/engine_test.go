package fileengine

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/backend"
	"github.com/BigKAA/artStore-sub005/pkg/cache"
	"github.com/BigKAA/artStore-sub005/pkg/mode"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// fakeBackend is an in-memory Backend used to exercise the engine without a
// real filesystem or object store.
type fakeBackend struct {
	objects  map[string][]byte
	capacity backend.Capacity
}

func newFakeBackend(free int64) *fakeBackend {
	return &fakeBackend{
		objects:  make(map[string][]byte),
		capacity: backend.Capacity{TotalBytes: 1 << 40, FreeBytes: free, UsedBytes: (1 << 40) - free},
	}
}

func (f *fakeBackend) Put(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.objects[relPath] = data
	return int64(len(data)), nil
}

func (f *fakeBackend) Get(ctx context.Context, relPath string, rng *backend.ByteRange) (io.ReadCloser, error) {
	data, ok := f.objects[relPath]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBackend) Delete(ctx context.Context, relPath string) error {
	delete(f.objects, relPath)
	return nil
}

func (f *fakeBackend) Exists(ctx context.Context, relPath string) (bool, error) {
	_, ok := f.objects[relPath]
	return ok, nil
}

func (f *fakeBackend) Capacity(ctx context.Context) (backend.Capacity, error) {
	return f.capacity, nil
}

// fakeWAL records calls without touching Postgres.
type fakeWAL struct {
	nextID     int64
	opened     []model.OperationType
	committed  []int64
	rolledBack []int64
	failed     []int64
}

func (w *fakeWAL) Open(ctx context.Context, opType model.OperationType, fileID *uuid.UUID, payload any) (model.WALEntry, error) {
	w.nextID++
	w.opened = append(w.opened, opType)
	return model.WALEntry{WALID: w.nextID, OperationType: opType, FileID: fileID}, nil
}

func (w *fakeWAL) Commit(ctx context.Context, walID int64) error {
	w.committed = append(w.committed, walID)
	return nil
}

func (w *fakeWAL) RollBack(ctx context.Context, walID int64, compensation any) error {
	w.rolledBack = append(w.rolledBack, walID)
	return nil
}

func (w *fakeWAL) Fail(ctx context.Context, walID int64) error {
	w.failed = append(w.failed, walID)
	return nil
}

func (w *fakeWAL) LatestUploadStoragePath(ctx context.Context, fileID uuid.UUID) (string, error) {
	return "", apperr.New(apperr.NotFound, "no committed upload found for file")
}

// fakeCache is an in-memory cacheStore.
type fakeCache struct {
	rows map[uuid.UUID]model.CacheRow
}

func newFakeCache() *fakeCache {
	return &fakeCache{rows: make(map[uuid.UUID]model.CacheRow)}
}

func (c *fakeCache) Upsert(ctx context.Context, row model.CacheRow) error {
	c.rows[row.FileID] = row
	return nil
}

func (c *fakeCache) Get(ctx context.Context, fileID uuid.UUID) (model.CacheRow, error) {
	row, ok := c.rows[fileID]
	if !ok {
		return model.CacheRow{}, apperr.New(apperr.NotFound, "not found")
	}
	return row, nil
}

func (c *fakeCache) Delete(ctx context.Context, fileID uuid.UUID) error {
	delete(c.rows, fileID)
	return nil
}

func (c *fakeCache) Search(ctx context.Context, p cache.SearchParams) (cache.SearchResult, error) {
	return cache.SearchResult{}, nil
}

func newTestEngine(t *testing.T, m model.Mode, free int64) (*Engine, *fakeBackend, *fakeWAL, *fakeCache) {
	t.Helper()
	ctrl, err := mode.NewController(m)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	b := newFakeBackend(free)
	w := &fakeWAL{}
	c := newFakeCache()
	e := &Engine{
		Backend:       b,
		WAL:           w,
		Cache:         c,
		Mode:          ctrl,
		RetentionDays: 30,
		CacheTTLHours: func() int { return 24 },
	}
	return e, b, w, c
}

func TestUploadThenDownloadRoundTrip(t *testing.T) {
	e, _, w, _ := newTestEngine(t, model.ModeEdit, 1<<30)
	ctx := context.Background()

	content := "hello artstore"
	res, err := e.Upload(ctx, UploadRequest{
		OriginalFilename: "notes.txt",
		UploadedBy:       "alice",
		DeclaredSize:     int64(len(content)),
	}, strings.NewReader(content))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.SizeBytes != int64(len(content)) {
		t.Errorf("SizeBytes = %d, want %d", res.SizeBytes, len(content))
	}
	if len(w.committed) != 1 {
		t.Errorf("committed WAL entries = %d, want 1", len(w.committed))
	}

	dl, err := e.Download(ctx, res.FileID, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer dl.Reader.Close()
	got, err := io.ReadAll(dl.Reader)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(got) != content {
		t.Errorf("downloaded content = %q, want %q", got, content)
	}
	if dl.File.SHA256Hash != res.SHA256 {
		t.Errorf("SHA256Hash = %q, want %q", dl.File.SHA256Hash, res.SHA256)
	}
}

func TestUploadRejectedInsufficientStorage(t *testing.T) {
	e, _, _, _ := newTestEngine(t, model.ModeEdit, 10)
	_, err := e.Upload(context.Background(), UploadRequest{
		OriginalFilename: "big.bin",
		UploadedBy:       "alice",
		DeclaredSize:     1000,
	}, strings.NewReader("x"))
	if !apperr.Is(err, apperr.InsufficientStorage) {
		t.Errorf("Upload() error = %v, want InsufficientStorage", err)
	}
}

func TestUploadDeniedInROMode(t *testing.T) {
	e, _, _, _ := newTestEngine(t, model.ModeRO, 1<<30)
	_, err := e.Upload(context.Background(), UploadRequest{
		OriginalFilename: "f.txt",
		UploadedBy:       "alice",
		DeclaredSize:     1,
	}, strings.NewReader("x"))
	if !apperr.Is(err, apperr.ModeDenied) {
		t.Errorf("Upload() error = %v, want ModeDenied", err)
	}
}

func TestDownloadInARModeGoneArchived(t *testing.T) {
	e, _, _, _ := newTestEngine(t, model.ModeAR, 1<<30)
	_, err := e.Download(context.Background(), uuid.New(), nil)
	if !apperr.Is(err, apperr.GoneArchived) {
		t.Errorf("Download() error = %v, want GoneArchived", err)
	}
}

func TestUpdateMetadataRecomputesExpiry(t *testing.T) {
	e, _, _, _ := newTestEngine(t, model.ModeEdit, 1<<30)
	ctx := context.Background()

	res, err := e.Upload(ctx, UploadRequest{
		OriginalFilename: "doc.txt",
		UploadedBy:       "alice",
		DeclaredSize:     5,
	}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	newRetention := 7
	newDesc := "updated"
	updated, err := e.UpdateMetadata(ctx, res.FileID, model.Attributes{
		Description:   &newDesc,
		RetentionDays: &newRetention,
	})
	if err != nil {
		t.Fatalf("UpdateMetadata() error = %v", err)
	}
	if updated.Description == nil || *updated.Description != newDesc {
		t.Errorf("Description = %v, want %q", updated.Description, newDesc)
	}
	if updated.RetentionDays != newRetention {
		t.Errorf("RetentionDays = %d, want %d", updated.RetentionDays, newRetention)
	}
	if got := updated.ExpiresAt.Sub(updated.UploadedAt).Hours(); got != float64(newRetention*24) {
		t.Errorf("ExpiresAt - UploadedAt = %vh, want %dh", got, newRetention*24)
	}
}

func TestDeleteRemovesObjectAndSidecar(t *testing.T) {
	e, b, _, _ := newTestEngine(t, model.ModeEdit, 1<<30)
	ctx := context.Background()

	res, err := e.Upload(ctx, UploadRequest{
		OriginalFilename: "doomed.txt",
		UploadedBy:       "alice",
		DeclaredSize:     4,
	}, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if err := e.Delete(ctx, res.FileID, false); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(b.objects) != 0 {
		t.Errorf("objects remaining after delete = %d, want 0", len(b.objects))
	}

	if _, err := e.GetMetadata(ctx, res.FileID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("GetMetadata() after delete error = %v, want NotFound", err)
	}
}

func TestDeleteInRWModeRequiresAdminServiceAccount(t *testing.T) {
	e, _, _, _ := newTestEngine(t, model.ModeRW, 1<<30)
	ctx := context.Background()

	res, err := e.Upload(ctx, UploadRequest{
		OriginalFilename: "f.txt",
		UploadedBy:       "alice",
		DeclaredSize:     1,
	}, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if err := e.Delete(ctx, res.FileID, false); !apperr.Is(err, apperr.ModeDenied) {
		t.Errorf("Delete(false) error = %v, want ModeDenied", err)
	}
	if err := e.Delete(ctx, res.FileID, true); err != nil {
		t.Errorf("Delete(true) error = %v, want nil", err)
	}
}
