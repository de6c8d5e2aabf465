package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

type fakeKeyCache struct {
	set        *jwtauth.KeySet
	refreshes  int
	refreshErr error
}

func (f *fakeKeyCache) KeySet() *jwtauth.KeySet { return f.set }
func (f *fakeKeyCache) Refresh(ctx context.Context) error {
	f.refreshes++
	return f.refreshErr
}

type fakeRotator struct {
	called bool
	err    error
}

func (f *fakeRotator) Rotate(ctx context.Context, now time.Time) error {
	f.called = true
	return f.err
}

type fakeKeyHistory struct {
	keys []jwtauth.Key
}

func (f *fakeKeyHistory) All(ctx context.Context) ([]jwtauth.Key, error) {
	return f.keys, nil
}

func newTestKey(t *testing.T, active bool) jwtauth.Key {
	t.Helper()
	now := time.Now().UTC()
	k, err := jwtauth.GenerateKey(now, now.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	k.IsActive = active
	return k
}

func TestHandleStatusReportsPrimaryAndActiveCount(t *testing.T) {
	k := newTestKey(t, true)
	h := &jwtKeysHandler{cache: &fakeKeyCache{set: jwtauth.NewKeySet([]jwtauth.Key{k})}}

	req := httptest.NewRequest(http.MethodGet, "/jwt-keys/status", nil)
	rec := httptest.NewRecorder()
	h.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !containsSubstring(rec.Body.String(), k.Version.String()) {
		t.Fatalf("expected primary version %s in response, got %s", k.Version, rec.Body.String())
	}
}

func TestHandleRotateRefreshesCacheAfterRotating(t *testing.T) {
	k := newTestKey(t, true)
	cache := &fakeKeyCache{set: jwtauth.NewKeySet([]jwtauth.Key{k})}
	rot := &fakeRotator{}
	h := &jwtKeysHandler{cache: cache, rotator: rot}

	req := httptest.NewRequest(http.MethodPost, "/jwt-keys/rotate", nil)
	rec := httptest.NewRecorder()
	h.handleRotate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !rot.called {
		t.Fatal("expected Rotate to be called")
	}
	if cache.refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", cache.refreshes)
	}
}

func TestHandleHistoryListsAllPersistedKeys(t *testing.T) {
	active := newTestKey(t, true)
	retired := newTestKey(t, false)
	h := &jwtKeysHandler{history: &fakeKeyHistory{keys: []jwtauth.Key{active, retired}}}

	req := httptest.NewRequest(http.MethodGet, "/jwt-keys/history", nil)
	rec := httptest.NewRecorder()
	h.handleHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !containsSubstring(body, active.Version.String()) || !containsSubstring(body, retired.Version.String()) {
		t.Fatalf("expected both key versions in history, got %s", body)
	}
}

func containsSubstring(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
