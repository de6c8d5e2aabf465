// Package model defines the core data types shared across the Storage
// Element engine: the sidecar-authoritative File, its metadata-cache
// mirror, and WAL entries (§3.1-§3.3).
package model

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the sidecar schema version a File was written with.
// Readers accept both; writers always produce SchemaV2 (§6.4).
type SchemaVersion string

const (
	SchemaV1 SchemaVersion = "1.0"
	SchemaV2 SchemaVersion = "2.0"
)

// DigitalSignature records an optional detached signature over the object
// bytes.
type DigitalSignature struct {
	Algorithm       string `json:"algorithm"`
	SidecarFilename string `json:"sidecar_filename"`
}

// File is the logical object. The sidecar JSON file is its sole
// authoritative representation (§3.1, §3.8); the metadata-cache row and any
// in-memory copy are recomputable mirrors.
type File struct {
	FileID            uuid.UUID         `json:"file_id"`
	OriginalFilename  string            `json:"original_filename"`
	StorageFilename   string            `json:"storage_filename"`
	StoragePath       string            `json:"storage_path"`
	SizeBytes         int64             `json:"size_bytes"`
	MimeType          *string           `json:"mime_type,omitempty"`
	SHA256Hash        string            `json:"sha256_hash"`
	MD5Hash           *string           `json:"md5_hash,omitempty"`
	UploadedBy        string            `json:"uploaded_by"`
	UploadedAt        time.Time         `json:"uploaded_at"`
	RetentionDays     int               `json:"retention_days"`
	ExpiresAt         time.Time         `json:"expires_at"`
	Version           int               `json:"version"`
	SchemaVersion     SchemaVersion     `json:"schema_version"`
	Description       *string           `json:"description,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Custom            map[string]any    `json:"custom,omitempty"`
	DigitalSignature  *DigitalSignature `json:"digital_signature,omitempty"`
}

// MaxSidecarBytes is the hard cap on serialized sidecar size (§3.1).
const MaxSidecarBytes = 4096

// Attributes projects the subset of File fields callers may mutate through
// update-metadata (§4.4): original_filename, storage_filename, file_id,
// sha256_hash, and size_bytes are immutable post-upload and excluded here.
type Attributes struct {
	Description   *string        `json:"description,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	RetentionDays *int           `json:"retention_days,omitempty"`
	Custom        map[string]any `json:"custom,omitempty"`
}

// Apply mutates f in place with the non-nil fields of a, recomputing
// ExpiresAt when RetentionDays changes (§4.4).
func (a Attributes) Apply(f *File) {
	if a.Description != nil {
		f.Description = a.Description
	}
	if a.Tags != nil {
		f.Tags = a.Tags
	}
	if a.Custom != nil {
		f.Custom = a.Custom
	}
	if a.RetentionDays != nil {
		f.RetentionDays = *a.RetentionDays
		f.ExpiresAt = f.UploadedAt.Add(time.Duration(*a.RetentionDays) * 24 * time.Hour)
	}
}
