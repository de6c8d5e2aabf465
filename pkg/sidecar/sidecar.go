// Package sidecar marshals, validates, and atomically persists the
// per-object attribute sidecar (§3.1, §4.1-§4.2, §6.4).
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// ErrTooLarge is returned when a sidecar's serialized form exceeds
// model.MaxSidecarBytes.
type ErrTooLarge struct {
	Size int
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("sidecar size %d bytes exceeds limit of %d bytes", e.Size, model.MaxSidecarBytes)
}

// Marshal serializes f as sidecar JSON, always stamping schema_version 2.0
// on write regardless of what version it was read with (§6.4 V1→V2
// migration). It enforces the size ceiling before returning.
func Marshal(f model.File) ([]byte, error) {
	f.SchemaVersion = model.SchemaV2

	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshaling sidecar: %w", err)
	}
	if len(data) > model.MaxSidecarBytes {
		return nil, &ErrTooLarge{Size: len(data)}
	}
	return data, nil
}

// Unmarshal parses sidecar JSON into a File. Both schema_version "1.0" and
// "2.0" are accepted (§6.4); the in-memory representation is identical
// either way since no V1-only field has been retired.
func Unmarshal(data []byte) (model.File, error) {
	var f model.File
	if err := json.Unmarshal(data, &f); err != nil {
		return model.File{}, fmt.Errorf("parsing sidecar: %w", err)
	}
	if f.SchemaVersion != model.SchemaV1 && f.SchemaVersion != model.SchemaV2 {
		return model.File{}, fmt.Errorf("unrecognized sidecar schema_version %q", f.SchemaVersion)
	}
	return f, nil
}

// WriteAtomic serializes f and writes it to path as a temp-file-then-rename
// sequence with an fsync before the rename, so a crash never leaves a
// partially-written sidecar visible under the final name (§4.2 step 6).
func WriteAtomic(path string, f model.File) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp sidecar: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp sidecar: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsyncing temp sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp sidecar: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming sidecar into place: %w", err)
	}

	return nil
}

// Read loads and parses a sidecar file from path.
func Read(path string) (model.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.File{}, err
	}
	return Unmarshal(data)
}
