package gc

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxRetryCycles bounds how many GC cycles a failing action is retried
// before its retry budget is considered exhausted and reported (§4.16,
// §4.19).
const maxRetryCycles = 5

// retryState tracks one failing action's exponential backoff schedule
// across GC cycles. GC runs on an hours-long interval (§4.16 default 6h),
// so this budget spans days, not seconds within one process lifetime —
// an in-memory tracker is sufficient since Admin restarts are infrequent
// relative to that horizon and a restart simply resets the count, which
// only delays (never skips) eventual reporting.
type retryState struct {
	backoff   *backoff.ExponentialBackOff
	nextAt    time.Time
	attempts  int
	exhausted bool
}

// retryTracker gates per-action retries on a cenkalti/backoff/v5 schedule
// rather than retrying immediately within a single cycle, matching
// §4.16's "retried on the next cycle with exponential backoff".
type retryTracker struct {
	mu    sync.Mutex
	state map[string]*retryState
}

func newRetryTracker() *retryTracker {
	return &retryTracker{state: make(map[string]*retryState)}
}

// ShouldAttempt reports whether key is due for a retry attempt this cycle.
// A key with no recorded failures is always due.
func (t *retryTracker) ShouldAttempt(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.state[key]
	if !ok || st.exhausted {
		return !ok
	}
	return !now.Before(st.nextAt)
}

// RecordSuccess clears any failure history for key.
func (t *retryTracker) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, key)
}

// RecordFailure advances key's backoff schedule and reports whether its
// retry budget is now exhausted (maxRetryCycles attempts reached).
func (t *retryTracker) RecordFailure(key string, now time.Time) (exhausted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.state[key]
	if !ok {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 1 * time.Hour
		st = &retryState{backoff: eb}
		t.state[key] = st
	}

	st.attempts++
	next, err := st.backoff.NextBackOff()
	if err == nil {
		st.nextAt = now.Add(next)
	}
	if st.attempts >= maxRetryCycles {
		st.exhausted = true
		return true
	}
	return false
}
