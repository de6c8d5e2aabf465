package gc

import (
	"testing"
	"time"
)

func TestRetryTrackerAttemptsUntilExhausted(t *testing.T) {
	tr := newRetryTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if !tr.ShouldAttempt("k", now) {
		t.Fatal("ShouldAttempt() = false for a never-seen key")
	}

	exhausted := false
	for i := 0; i < maxRetryCycles; i++ {
		exhausted = tr.RecordFailure("k", now)
		now = now.Add(48 * time.Hour)
	}
	if !exhausted {
		t.Error("RecordFailure() never reported exhausted after maxRetryCycles failures")
	}
}

func TestRetryTrackerNotDueBeforeBackoffElapses(t *testing.T) {
	tr := newRetryTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tr.RecordFailure("k", now)
	if tr.ShouldAttempt("k", now.Add(time.Minute)) {
		t.Error("ShouldAttempt() = true immediately after a failure, before backoff elapsed")
	}
	if !tr.ShouldAttempt("k", now.Add(48*time.Hour)) {
		t.Error("ShouldAttempt() = false once the backoff interval has clearly elapsed")
	}
}

func TestRetryTrackerSuccessClearsHistory(t *testing.T) {
	tr := newRetryTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tr.RecordFailure("k", now)
	tr.RecordSuccess("k")
	if !tr.ShouldAttempt("k", now) {
		t.Error("ShouldAttempt() = false for a key whose failure history was cleared")
	}
}
