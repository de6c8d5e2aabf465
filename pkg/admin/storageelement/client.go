package storageelement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// infoPayload mirrors the Storage Element's §6.3 discovery payload. It is
// redefined here rather than imported from pkg/se/httpapi to keep the
// Admin binary free of a build dependency on the Storage Element process.
type infoPayload struct {
	Mode         model.Mode `json:"mode"`
	CapacityByte int64      `json:"capacity_bytes"`
	UsedBytes    int64      `json:"used_bytes"`
	FileCount    int64      `json:"file_count"`
}

// InfoClient calls a Storage Element's own /info endpoint. Grounded on the
// package's plain net/http.Client outbound-integration idiom (context,
// status-code check, JSON decode).
type InfoClient struct {
	httpClient *http.Client
}

func NewInfoClient() *InfoClient {
	return &InfoClient{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (c *InfoClient) FetchInfo(ctx context.Context, endpoint string) (infoPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/api/v1/info", nil)
	if err != nil {
		return infoPayload{}, fmt.Errorf("building info request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return infoPayload{}, fmt.Errorf("calling storage element: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return infoPayload{}, fmt.Errorf("storage element returned HTTP %d", resp.StatusCode)
	}

	var payload infoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return infoPayload{}, fmt.Errorf("decoding info response: %w", err)
	}
	return payload, nil
}
