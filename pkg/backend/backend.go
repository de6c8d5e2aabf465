// Package backend abstracts the physical byte-storage layer a Storage
// Element writes to: local filesystem or S3-compatible object storage
// (§3.4, §4.2, §4.10).
package backend

import (
	"context"
	"fmt"
	"io"
)

// ErrRangeNotSatisfiable indicates a ByteRange's start lies at or past the
// object's actual size.
type ErrRangeNotSatisfiable struct {
	Size int64
}

func (e *ErrRangeNotSatisfiable) Error() string {
	return fmt.Sprintf("range start outside object of %d bytes", e.Size)
}

// ByteRange is an inclusive byte range for a ranged read (§4.3, RFC 7233
// single-range semantics).
type ByteRange struct {
	Start int64
	End   int64 // inclusive; -1 means "to end of object"
}

// Capacity reports a backend's total/used/free bytes (§4.10).
type Capacity struct {
	TotalBytes int64
	UsedBytes  int64
	FreeBytes  int64
}

// Backend is the physical storage interface a Storage Element writes
// through. relPath is always relative to the backend's configured base
// (local base directory, or S3 bucket prefix) and never contains "..".
type Backend interface {
	// Put streams r to relPath, returning the number of bytes written. The
	// caller is responsible for computing the checksum; Put does not hash.
	Put(ctx context.Context, relPath string, r io.Reader) (int64, error)

	// Get opens relPath for reading, optionally restricted to rng.
	Get(ctx context.Context, relPath string, rng *ByteRange) (io.ReadCloser, error)

	// Delete removes relPath. Deleting a non-existent object is not an
	// error (GC strategies may race with a concurrent delete).
	Delete(ctx context.Context, relPath string) error

	// Exists reports whether relPath is present.
	Exists(ctx context.Context, relPath string) (bool, error)

	// Capacity reports the backend's current space usage (§4.10).
	Capacity(ctx context.Context) (Capacity, error)
}
