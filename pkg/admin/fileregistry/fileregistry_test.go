package fileregistry

import (
	"testing"
	"time"
)

func TestEntryExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		e    Entry
		want bool
	}{
		{"temporary past ttl", Entry{RetentionPolicy: RetentionTemporary, TTLExpiresAt: &past}, true},
		{"temporary future ttl", Entry{RetentionPolicy: RetentionTemporary, TTLExpiresAt: &future}, false},
		{"permanent past ttl ignored", Entry{RetentionPolicy: RetentionPermanent, TTLExpiresAt: &past}, false},
		{"already soft deleted", Entry{RetentionPolicy: RetentionTemporary, TTLExpiresAt: &past, SoftDeletedAt: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryEligibleForEditCleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	margin := 24 * time.Hour
	finalized := "rw"

	old := Entry{FinalizedMode: &finalized, LastSeenAt: now.Add(-25 * time.Hour)}
	if !old.EligibleForEditCleanup(now, margin) {
		t.Error("EligibleForEditCleanup() = false for an entry past the safety margin")
	}

	recent := Entry{FinalizedMode: &finalized, LastSeenAt: now.Add(-1 * time.Hour)}
	if recent.EligibleForEditCleanup(now, margin) {
		t.Error("EligibleForEditCleanup() = true for an entry within the safety margin")
	}

	notFinalized := Entry{LastSeenAt: now.Add(-25 * time.Hour)}
	if notFinalized.EligibleForEditCleanup(now, margin) {
		t.Error("EligibleForEditCleanup() = true for a non-finalized entry")
	}
}

func TestOrphanObservationEligibleForDeletion(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	margin := 7 * 24 * time.Hour

	eligible := OrphanObservation{ObservationCount: 2, FirstObservedAt: now.Add(-8 * 24 * time.Hour)}
	if !eligible.EligibleForDeletion(now, margin) {
		t.Error("EligibleForDeletion() = false for a two-observation orphan past the margin")
	}

	tooSoon := OrphanObservation{ObservationCount: 2, FirstObservedAt: now.Add(-1 * time.Hour)}
	if tooSoon.EligibleForDeletion(now, margin) {
		t.Error("EligibleForDeletion() = true for an orphan within the margin")
	}

	onlyOnce := OrphanObservation{ObservationCount: 1, FirstObservedAt: now.Add(-8 * 24 * time.Hour)}
	if onlyOnce.EligibleForDeletion(now, margin) {
		t.Error("EligibleForDeletion() = true with only a single observation")
	}
}
