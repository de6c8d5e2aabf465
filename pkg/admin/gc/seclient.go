package gc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// TokenIssuer mints a short-lived internal bearer token GC uses to
// authenticate to Storage Elements as an ADMIN-role service account.
// Satisfied by *jwtauth.Issuer.
type TokenIssuer interface {
	Issue(subject string, claims jwtauth.Claims, ttl time.Duration, now time.Time) (string, error)
}

// internalTokenTTL is deliberately short: GC mints a fresh token per run
// rather than caching one, since cycles are hours apart (§4.16 default 6h).
const internalTokenTTL = 5 * time.Minute

// SEClient calls Storage Elements' file-delete and GC-object-delete
// endpoints on Admin's behalf. Grounded on the same plain net/http.Client
// idiom as pkg/admin/storageelement's InfoClient (itself grounded on the
// teacher's pkg/bookowl/client.go).
type SEClient struct {
	httpClient *http.Client
	issuer     TokenIssuer
}

func NewSEClient(issuer TokenIssuer) *SEClient {
	return &SEClient{httpClient: &http.Client{Timeout: 30 * time.Second}, issuer: issuer}
}

func (c *SEClient) bearer(now time.Time) (string, error) {
	claims := jwtauth.Claims{Type: jwtauth.PrincipalServiceAccount, Role: "ADMIN", Name: "gc-internal"}
	return c.issuer.Issue("gc-internal", claims, internalTokenTTL, now)
}

// DeleteFile calls DELETE /api/v1/files/{id} on the owning Storage Element.
func (c *SEClient) DeleteFile(ctx context.Context, endpoint string, fileID uuid.UUID) error {
	token, err := c.bearer(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("minting internal token: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/files/%s", endpoint, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling storage element delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("storage element delete returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// DeleteObject calls the wildcard GC route to remove a raw object by
// storage-relative path, used for the orphan sweep, where there is no
// registry-tracked file_id to address by.
func (c *SEClient) DeleteObject(ctx context.Context, endpoint, storagePath string) error {
	token, err := c.bearer(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("minting internal token: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/gc/%s", endpoint, storagePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("building gc delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling storage element gc delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("storage element gc delete returned HTTP %d", resp.StatusCode)
	}
	return nil
}
