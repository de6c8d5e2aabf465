// Package namefmt derives deterministic storage filenames and directory
// placement for uploaded objects (§4.1).
package namefmt

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxFilenameBytes bounds the derived storage filename length (§4.1).
const MaxFilenameBytes = 200

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeStem strips characters that are unsafe in a filesystem path,
// collapsing runs of them to a single underscore.
func sanitizeStem(stem string) string {
	stem = unsafeChars.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "_")
	if stem == "" {
		stem = "file"
	}
	return stem
}

// StorageFilename derives the deterministic on-disk filename for an
// uploaded object: {stem}_{username}_{YYYYMMDDTHHMMSS}_{uuid8}.{ext}
// (§4.1). stem is truncated so the total length stays within
// MaxFilenameBytes. uploadedAt is expected to already be UTC.
func StorageFilename(originalFilename, username string, uploadedAt time.Time, id uuid.UUID) string {
	ext := path.Ext(originalFilename)
	stemRaw := strings.TrimSuffix(path.Base(originalFilename), ext)
	stem := sanitizeStem(stemRaw)
	user := sanitizeStem(username)
	ts := uploadedAt.UTC().Format("20060102T150405")
	uuid8 := strings.ReplaceAll(id.String(), "-", "")[:8]

	suffix := fmt.Sprintf("_%s_%s_%s%s", user, ts, uuid8, ext)
	maxStem := MaxFilenameBytes - len(suffix)
	if maxStem < 1 {
		maxStem = 1
	}
	if len(stem) > maxStem {
		stem = stem[:maxStem]
	}

	return stem + suffix
}

// DirectoryPrefix derives the hour-bucketed storage directory for t
// (§4.1): {YYYY}/{MM}/{DD}/{HH}, relative to the backend's base path. t is
// expected to already be UTC.
func DirectoryPrefix(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%02d", t.Year(), t.Month(), t.Day(), t.Hour())
}

// SidecarFilename derives the sidecar path from an object's storage path
// (§4.1, §6.4): "{file_path}.attr.json".
func SidecarFilename(storageFilename string) string {
	return storageFilename + ".attr.json"
}
