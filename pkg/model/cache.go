package model

import (
	"time"

	"github.com/google/uuid"
)

// CacheRow mirrors a File for fast search/lookup (§3.2). It is a weak,
// recomputable mirror — the sidecar remains the source of truth.
type CacheRow struct {
	FileID           uuid.UUID      `json:"file_id"`
	OriginalFilename string         `json:"original_filename"`
	StorageFilename  string         `json:"storage_filename"`
	StoragePath      string         `json:"storage_path"`
	SizeBytes        int64          `json:"size_bytes"`
	MimeType         *string        `json:"mime_type,omitempty"`
	SHA256Hash       string         `json:"sha256_hash"`
	UploadedBy       string         `json:"uploaded_by"`
	UploadedAt       time.Time      `json:"uploaded_at"`
	ExpiresAt        time.Time      `json:"expires_at"`
	Description      *string        `json:"description,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Custom           map[string]any `json:"custom,omitempty"`
	CacheUpdatedAt   time.Time      `json:"cache_updated_at"`
	CacheTTLHours    int            `json:"cache_ttl_hours"`
}

// Expired reports whether the row's TTL has elapsed as of now (§3.2).
func (r CacheRow) Expired(now time.Time) bool {
	return r.CacheUpdatedAt.Add(time.Duration(r.CacheTTLHours) * time.Hour).Before(now)
}

// FromFile builds a CacheRow mirroring f, stamped with the current instant
// and the ttlHours appropriate for the SE's mode (§3.2, §4.9).
func FromFile(f File, ttlHours int, now time.Time) CacheRow {
	return CacheRow{
		FileID:           f.FileID,
		OriginalFilename: f.OriginalFilename,
		StorageFilename:  f.StorageFilename,
		StoragePath:      f.StoragePath,
		SizeBytes:        f.SizeBytes,
		MimeType:         f.MimeType,
		SHA256Hash:       f.SHA256Hash,
		UploadedBy:       f.UploadedBy,
		UploadedAt:       f.UploadedAt,
		ExpiresAt:        f.ExpiresAt,
		Description:      f.Description,
		Tags:             f.Tags,
		Custom:           f.Custom,
		CacheUpdatedAt:   now,
		CacheTTLHours:    ttlHours,
	}
}
