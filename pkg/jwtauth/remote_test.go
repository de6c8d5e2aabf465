package jwtauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFetchActiveKeysParsesResponse(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	version := uuid.New()
	key, err := GenerateKey(now, now.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	key.Version = version

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jwt-keys/active" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]PublicKeyDTO{{
			Version:      version.String(),
			PublicKeyPEM: key.PublicKeyPEM,
			CreatedAt:    now,
			ExpiresAt:    now.Add(48 * time.Hour),
			IsActive:     true,
		}})
	}))
	defer srv.Close()

	set, err := FetchActiveKeys(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("FetchActiveKeys() error = %v", err)
	}
	primary, ok := set.Primary()
	if !ok {
		t.Fatal("Primary() ok = false, want true")
	}
	if primary.Version != version {
		t.Errorf("Primary().Version = %v, want %v", primary.Version, version)
	}
	if primary.PrivateKeyPEM != "" {
		t.Errorf("remote key carries private key material, want none")
	}
}

func TestRemoteKeySetCacheServesLastGoodSetOnRefreshFailure(t *testing.T) {
	var fail bool
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key, _ := GenerateKey(now, now.Add(48*time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]PublicKeyDTO{{
			Version:      key.Version.String(),
			PublicKeyPEM: key.PublicKeyPEM,
			CreatedAt:    now,
			ExpiresAt:    now.Add(48 * time.Hour),
			IsActive:     true,
		}})
	}))
	defer srv.Close()

	cache := NewRemoteKeySetCache(srv.Client(), srv.URL)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if _, ok := cache.KeySet().Primary(); !ok {
		t.Fatal("expected a primary key after first refresh")
	}

	fail = true
	if err := cache.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want error on 500")
	}
	if _, ok := cache.KeySet().Primary(); !ok {
		t.Error("cache lost its last good key set after a failed refresh")
	}
}
