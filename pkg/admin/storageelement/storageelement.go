// Package storageelement implements Admin's registration and periodic sync
// of Storage Element records (§4.15).
package storageelement

import (
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// Status is the Admin-observed reachability of a registered Storage
// Element, distinct from the fleet-wide registry's HealthStatus: it tracks
// whether the periodic sync loop can still reach the SE's own /info.
type Status string

const (
	StatusOperational Status = "operational"
	StatusOffline     Status = "offline"
)

// defaultFailureThreshold is how many consecutive failed syncs mark a
// Storage Element offline (§4.15). Every Service uses this value;
// STORAGE_ELEMENT_SYNC_MAX_FAILURES is parsed into config.AdminConfig but
// is not read.
const defaultFailureThreshold = 3

// StorageElement is Admin's record of a registered Storage Element,
// refreshed by the periodic sync loop from that SE's own /info payload.
// Mode is read-only from Admin's perspective: Admin must never attempt to
// mutate it (§4.15).
type StorageElement struct {
	ID                  uuid.UUID
	Name                string
	Endpoint            string
	Mode                model.Mode
	CapacityTotal       int64
	CapacityUsed        int64
	FileCount           int64
	Status              Status
	ConsecutiveFailures int
	LastSyncAt          time.Time
	LastSeenAt          time.Time
	CreatedAt           time.Time
}

// RegisterRequest is the payload for registering a new Storage Element.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Endpoint string `json:"endpoint" validate:"required,url"`
}

// UpdateRequest is the payload for PUT /storage-elements/{id}. Mode and
// capacity are synced from the element itself and cannot be set here.
type UpdateRequest struct {
	Name     string `json:"name" validate:"required"`
	Endpoint string `json:"endpoint" validate:"required,url"`
}

// Response is the JSON-safe projection of a StorageElement.
type Response struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Endpoint      string     `json:"endpoint"`
	Mode          model.Mode `json:"mode"`
	CapacityTotal int64      `json:"capacity_total"`
	CapacityUsed  int64      `json:"capacity_used"`
	FileCount     int64      `json:"file_count"`
	Status        Status     `json:"status"`
	LastSyncAt    time.Time  `json:"last_sync_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (se StorageElement) ToResponse() Response {
	return Response{
		ID:            se.ID,
		Name:          se.Name,
		Endpoint:      se.Endpoint,
		Mode:          se.Mode,
		CapacityTotal: se.CapacityTotal,
		CapacityUsed:  se.CapacityUsed,
		FileCount:     se.FileCount,
		Status:        se.Status,
		LastSyncAt:    se.LastSyncAt,
		CreatedAt:     se.CreatedAt,
	}
}
