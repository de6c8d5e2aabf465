package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OperationType is the kind of mutation a WAL entry records (§3.3).
type OperationType string

const (
	OpUpload         OperationType = "upload"
	OpDelete         OperationType = "delete"
	OpUpdateMetadata OperationType = "update_metadata"
	OpModeChange     OperationType = "mode_change"
)

// WALStatus is the lifecycle state of a WAL entry (§3.3).
type WALStatus string

const (
	WALPending    WALStatus = "pending"
	WALInProgress WALStatus = "in_progress"
	WALCommitted  WALStatus = "committed"
	WALRolledBack WALStatus = "rolled_back"
	WALFailed     WALStatus = "failed"
)

// Terminal reports whether s is a terminal status — no further transitions
// are expected once a row reaches one (§3.3, §4.2).
func (s WALStatus) Terminal() bool {
	return s == WALCommitted || s == WALRolledBack || s == WALFailed
}

// WALEntry is a single write-ahead-log row. At most one non-terminal row
// per FileID may exist at a time (§3.3); a second mutating operation on the
// same file observes apperr.ConflictWALInFlight.
type WALEntry struct {
	WALID            int64           `json:"wal_id"`
	TransactionID    uuid.UUID       `json:"transaction_id"`
	SagaID           *uuid.UUID      `json:"saga_id,omitempty"`
	OperationType    OperationType   `json:"operation_type"`
	Status           WALStatus       `json:"status"`
	FileID           *uuid.UUID      `json:"file_id,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	CompensationData json.RawMessage `json:"compensation_data,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CommittedAt      *time.Time      `json:"committed_at,omitempty"`
}

// UploadPayload is the forward data recorded when opening an upload WAL
// entry (§4.2 step 3).
type UploadPayload struct {
	ReservationID   uuid.UUID `json:"reservation_id"`
	StoragePath     string    `json:"storage_path"`
	StorageFilename string    `json:"storage_filename"`
}

// DeleteCompensation captures what a delete removed, so a failed delete
// leaves enough information for GC strategy (c) to recognize the orphan
// later (§4.5).
type DeleteCompensation struct {
	StoragePath     string `json:"storage_path"`
	StorageFilename string `json:"storage_filename"`
	SidecarDeleted  bool   `json:"sidecar_deleted"`
	ObjectDeleted   bool   `json:"object_deleted"`
}

// UploadCompensation describes what was removed when an upload is rolled
// back (§4.2 failure policy).
type UploadCompensation struct {
	TempRemoved   bool `json:"temp_removed"`
	ObjectRemoved bool `json:"object_removed"`
	SidecarRemoved bool `json:"sidecar_removed"`
	Reason        string `json:"reason"`
}
