package jwtauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PublicKeyDTO is the wire shape of one key as returned by Admin's
// `GET /jwt-keys/active` (§6.2), used by a Storage Element to build a
// validation-only KeySet without ever holding a private key.
type PublicKeyDTO struct {
	Version      string    `json:"version"`
	PublicKeyPEM string    `json:"public_key_pem"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
}

// FetchActiveKeys fetches the active validation key set from Admin and
// returns a KeySet. The keys hold no private material, so only Validate
// (never Issue) may be called on the result.
func FetchActiveKeys(ctx context.Context, httpClient *http.Client, adminBaseURL string) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, adminBaseURL+"/api/v1/jwt-keys/active", nil)
	if err != nil {
		return nil, fmt.Errorf("building jwt-keys request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching active jwt keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching active jwt keys: unexpected status %d", resp.StatusCode)
	}

	var dtos []PublicKeyDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decoding active jwt keys: %w", err)
	}

	keys := make([]Key, 0, len(dtos))
	for _, d := range dtos {
		version, err := uuid.Parse(d.Version)
		if err != nil {
			continue
		}
		keys = append(keys, Key{
			Version:      version,
			PublicKeyPEM: d.PublicKeyPEM,
			CreatedAt:    d.CreatedAt,
			ExpiresAt:    d.ExpiresAt,
			IsActive:     d.IsActive,
		})
	}
	return NewKeySet(keys), nil
}

// RemoteKeySetCache holds a KeySet fetched from Admin, refreshed on an
// interval so a flaky or restarted Admin doesn't invalidate every SE
// request immediately; the previous key set keeps serving until a refresh
// succeeds.
type RemoteKeySetCache struct {
	httpClient   *http.Client
	adminBaseURL string

	mu  sync.RWMutex
	set *KeySet
}

// NewRemoteKeySetCache builds an empty cache; call Refresh once before
// serving requests, then Run to keep it current.
func NewRemoteKeySetCache(httpClient *http.Client, adminBaseURL string) *RemoteKeySetCache {
	return &RemoteKeySetCache{httpClient: httpClient, adminBaseURL: adminBaseURL, set: NewKeySet(nil)}
}

// Refresh fetches and swaps in a new key set.
func (c *RemoteKeySetCache) Refresh(ctx context.Context) error {
	set, err := FetchActiveKeys(ctx, c.httpClient, c.adminBaseURL)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.set = set
	c.mu.Unlock()
	return nil
}

// KeySet returns the currently cached key set.
func (c *RemoteKeySetCache) KeySet() *KeySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

// Run refreshes the cache on interval until ctx is cancelled. Refresh
// failures are swallowed here; the cache keeps serving its last good set.
func (c *RemoteKeySetCache) Run(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
