// Package fileregistry implements Admin's lightweight file registry and
// orphan-observation bookkeeping that the Garbage Collector consults
// (§4.16, §4.18). It is not a replica of every sidecar field; it only
// carries what GC's three strategies need to decide TTL/finalize/orphan.
package fileregistry

import (
	"time"

	"github.com/google/uuid"
)

// RetentionPolicy classifies whether a file is subject to TTL-based
// cleanup (§4.16 strategy a).
type RetentionPolicy string

const (
	RetentionTemporary RetentionPolicy = "temporary"
	RetentionPermanent RetentionPolicy = "permanent"
)

// Entry is one File Registry row (§4.18). FinalizedMode is set once the
// file has been confirmed present on a rw/ro/ar Storage Element, making
// its edit-mode copy eligible for cleanup (§4.16 strategy b).
type Entry struct {
	FileID          uuid.UUID
	ElementID       uuid.UUID
	RetentionPolicy RetentionPolicy
	TTLExpiresAt    *time.Time
	FinalizedMode   *string
	SoftDeletedAt   *time.Time
	LastSeenAt      time.Time
}

// Expired reports whether a temporary entry's TTL has passed and it has
// not already been soft-deleted (§4.16 strategy a).
func (e Entry) Expired(now time.Time) bool {
	return e.RetentionPolicy == RetentionTemporary &&
		e.TTLExpiresAt != nil && now.After(*e.TTLExpiresAt) &&
		e.SoftDeletedAt == nil
}

// EligibleForEditCleanup reports whether a finalized file's edit-SE copy
// may be removed: finalized for at least safetyMargin (§4.16 strategy b,
// default 24h).
func (e Entry) EligibleForEditCleanup(now time.Time, safetyMargin time.Duration) bool {
	return e.FinalizedMode != nil && e.SoftDeletedAt == nil &&
		now.Sub(e.LastSeenAt) >= safetyMargin
}

// OrphanObservation records that an object with no File Registry entry was
// seen on a Storage Element. The invariant in §4.16 ("nothing is deleted
// without at least two consecutive no-registry-record observations
// separated by the safety margin") requires these to persist across GC
// cycles rather than being recomputed in memory.
type OrphanObservation struct {
	ElementID        uuid.UUID
	StoragePath      string
	FirstObservedAt  time.Time
	LastObservedAt   time.Time
	ObservationCount int
}

// EligibleForDeletion reports whether an orphan has now been observed at
// least twice, separated by at least safetyMargin (§4.16 strategy c,
// default 7 days).
func (o OrphanObservation) EligibleForDeletion(now time.Time, safetyMargin time.Duration) bool {
	return o.ObservationCount >= 2 && now.Sub(o.FirstObservedAt) >= safetyMargin
}
