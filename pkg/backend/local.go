package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/BigKAA/artStore-sub005/pkg/dirlock"
)

// Local is a filesystem-backed Backend rooted at BasePath. Objects are
// written via a temp-file-then-rename sequence with an fsync before the
// rename (§4.2 step 5).
type Local struct {
	BasePath string
	fence    *dirlock.Fence
}

// NewLocal creates a Local backend rooted at basePath.
func NewLocal(basePath string) *Local {
	return &Local{BasePath: basePath, fence: dirlock.New()}
}

func (l *Local) abs(relPath string) string {
	return filepath.Join(l.BasePath, filepath.Clean("/"+relPath))
}

// Put writes r to a temp file beside the final path, fsyncs, then renames
// into place. The parent directory is created if needed, fenced against
// concurrent first-writers in the same directory (§4.1).
func (l *Local) Put(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	dest := l.abs(relPath)
	dir := filepath.Dir(dest)

	if err := l.fence.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating temp object: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("writing object: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("fsyncing object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("closing object: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("renaming object into place: %w", err)
	}

	return n, nil
}

// rangeReadCloser wraps an *os.File restricted to a byte range.
type rangeReadCloser struct {
	io.Reader
	f *os.File
}

func (r *rangeReadCloser) Close() error { return r.f.Close() }

func (l *Local) Get(_ context.Context, relPath string, rng *ByteRange) (io.ReadCloser, error) {
	f, err := os.Open(l.abs(relPath))
	if err != nil {
		return nil, err
	}
	if rng == nil {
		return f, nil
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting object: %w", err)
	}
	if rng.Start < 0 || rng.Start >= info.Size() {
		f.Close()
		return nil, &ErrRangeNotSatisfiable{Size: info.Size()}
	}

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking to range start: %w", err)
	}

	if rng.End < 0 {
		return &rangeReadCloser{Reader: f, f: f}, nil
	}

	n := rng.End - rng.Start + 1
	return &rangeReadCloser{Reader: io.LimitReader(f, n), f: f}, nil
}

func (l *Local) Delete(_ context.Context, relPath string) error {
	err := os.Remove(l.abs(relPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Local) Exists(_ context.Context, relPath string) (bool, error) {
	_, err := os.Stat(l.abs(relPath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Capacity reports filesystem space via statvfs (§4.10).
func (l *Local) Capacity(_ context.Context) (Capacity, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(l.BasePath, &stat); err != nil {
		return Capacity{}, fmt.Errorf("statfs %s: %w", l.BasePath, err)
	}

	total := int64(stat.Blocks) * int64(stat.Bsize)
	free := int64(stat.Bavail) * int64(stat.Bsize)
	used := total - free

	return Capacity{TotalBytes: total, UsedBytes: used, FreeBytes: free}, nil
}
