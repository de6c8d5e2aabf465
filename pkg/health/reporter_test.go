package health

import (
	"context"
	"io"
	"testing"

	"github.com/BigKAA/artStore-sub005/pkg/backend"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

type fakeBackend struct {
	cap backend.Capacity
	err error
}

func (f *fakeBackend) Put(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	return 0, nil
}
func (f *fakeBackend) Get(ctx context.Context, relPath string, rng *backend.ByteRange) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeBackend) Delete(ctx context.Context, relPath string) error         { return nil }
func (f *fakeBackend) Exists(ctx context.Context, relPath string) (bool, error) { return false, nil }
func (f *fakeBackend) Capacity(ctx context.Context) (backend.Capacity, error)   { return f.cap, f.err }

func TestSampleDerivesStatusForRWMode(t *testing.T) {
	b := &fakeBackend{cap: backend.Capacity{TotalBytes: 1000 * (1 << 30), UsedBytes: 990 * (1 << 30), FreeBytes: 10 * (1 << 30)}}
	r := NewReporter("se-local-01", model.ModeRW, "http://se-local-01:8080", 10, b, nil, 0, nil)

	rec, err := r.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if rec.CapacityStatus != model.CapacityFull {
		t.Errorf("CapacityStatus = %v, want full", rec.CapacityStatus)
	}
	if rec.HealthStatus != model.HealthHealthy {
		t.Errorf("HealthStatus = %v, want healthy", rec.HealthStatus)
	}
}

func TestSampleROModeAlwaysOK(t *testing.T) {
	b := &fakeBackend{cap: backend.Capacity{TotalBytes: 1000, UsedBytes: 999, FreeBytes: 1}}
	r := NewReporter("se-archive-01", model.ModeRO, "http://se-archive-01:8080", 5, b, nil, 0, nil)

	rec, err := r.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if rec.CapacityStatus != model.CapacityOK {
		t.Errorf("CapacityStatus = %v, want ok", rec.CapacityStatus)
	}
}
