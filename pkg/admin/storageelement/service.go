package storageelement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BigKAA/artStore-sub005/pkg/capacity"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// Notifier reports capacity-status transitions noticed during sync (§4.19).
// A nil Notifier makes Service a no-op for this concern, matching the
// "integration disabled when unconfigured" convention.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Service registers and syncs Storage Elements (§4.15).
type Service struct {
	store            *Store
	client           *InfoClient
	notifier         Notifier
	logger           *slog.Logger
	failureThreshold int
}

func NewService(pool *pgxpool.Pool, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:            NewStore(pool),
		client:           NewInfoClient(),
		notifier:         notifier,
		logger:           logger,
		failureThreshold: defaultFailureThreshold,
	}
}

func (s *Service) List(ctx context.Context) ([]Response, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing storage elements: %w", err)
	}
	items := make([]Response, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.ToResponse())
	}
	return items, nil
}

// Get returns a single registered Storage Element.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Response, error) {
	se, err := s.store.Get(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("looking up storage element: %w", err)
	}
	return se.ToResponse(), nil
}

// Update changes the name/endpoint an operator registered for a Storage
// Element.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Response, error) {
	se, err := s.store.UpdateEndpoint(ctx, id, req.Name, req.Endpoint)
	if err != nil {
		return Response{}, fmt.Errorf("updating storage element: %w", err)
	}
	return se.ToResponse(), nil
}

// DiscoverRequest is the POST /storage-elements/discover body: a probe of
// a candidate endpoint's /info, without persisting anything (§6.2).
type DiscoverRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

// DiscoverResponse previews what Register would persist for this endpoint.
type DiscoverResponse struct {
	Endpoint      string     `json:"endpoint"`
	Mode          model.Mode `json:"mode"`
	CapacityTotal int64      `json:"capacity_total"`
	CapacityUsed  int64      `json:"capacity_used"`
	FileCount     int64      `json:"file_count"`
}

// Discover probes a Storage Element's /info without registering it, so an
// operator can confirm reachability and mode before committing (§6.2).
func (s *Service) Discover(ctx context.Context, req DiscoverRequest) (DiscoverResponse, error) {
	info, err := s.client.FetchInfo(ctx, req.Endpoint)
	if err != nil {
		return DiscoverResponse{}, fmt.Errorf("discovering storage element: %w", err)
	}
	return DiscoverResponse{
		Endpoint:      req.Endpoint,
		Mode:          info.Mode,
		CapacityTotal: info.CapacityByte,
		CapacityUsed:  info.UsedBytes,
		FileCount:     info.FileCount,
	}, nil
}

// Register calls the Storage Element's /info once and stores the initial
// record (§4.15: "Admin calls SE /info; stores a record with derived
// fields").
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Response, error) {
	info, err := s.client.FetchInfo(ctx, req.Endpoint)
	if err != nil {
		return Response{}, fmt.Errorf("registering storage element: %w", err)
	}

	now := time.Now().UTC()
	se := StorageElement{
		ID:            uuid.New(),
		Name:          req.Name,
		Endpoint:      req.Endpoint,
		Mode:          info.Mode,
		CapacityTotal: info.CapacityByte,
		CapacityUsed:  info.UsedBytes,
		FileCount:     info.FileCount,
		Status:        StatusOperational,
		LastSyncAt:    now,
		LastSeenAt:    now,
		CreatedAt:     now,
	}

	created, err := s.store.Create(ctx, se)
	if err != nil {
		return Response{}, fmt.Errorf("storing storage element: %w", err)
	}
	return created.ToResponse(), nil
}

// SyncOne runs one sync cycle for a single Storage Element: fetch /info,
// update capacity/file_count, and transition operational/offline on
// reachability (§4.15). Mode is never written back to the SE; Admin only
// ever reads it.
func (s *Service) SyncOne(ctx context.Context, se StorageElement) error {
	now := time.Now().UTC()

	info, err := s.client.FetchInfo(ctx, se.Endpoint)
	if err != nil {
		failures := se.ConsecutiveFailures + 1
		status := se.Status
		if failures >= s.failureThreshold {
			status = StatusOffline
		}
		if updateErr := s.store.UpdateSync(ctx, se.ID, se.CapacityTotal, se.CapacityUsed, se.FileCount, status, failures, now, se.LastSeenAt); updateErr != nil {
			return fmt.Errorf("recording sync failure for %s: %w", se.Name, updateErr)
		}
		if status == StatusOffline && se.Status != StatusOffline {
			s.notify(ctx, fmt.Sprintf("storage element %s (%s) marked offline after %d consecutive sync failures", se.Name, se.ID, failures))
		}
		return nil
	}

	prevStatus := s.capacityStatus(se.Mode, se.CapacityTotal, se.CapacityUsed)
	newStatus := s.capacityStatus(info.Mode, info.CapacityByte, info.UsedBytes)
	if (newStatus == model.CapacityCritical || newStatus == model.CapacityFull) && newStatus != prevStatus {
		s.notify(ctx, fmt.Sprintf("storage element %s (%s) capacity_status transitioned to %s", se.Name, se.ID, newStatus))
	}

	recoveringFromOffline := se.Status == StatusOffline
	if err := s.store.UpdateSync(ctx, se.ID, info.CapacityByte, info.UsedBytes, info.FileCount, StatusOperational, 0, now, now); err != nil {
		return fmt.Errorf("recording sync success for %s: %w", se.Name, err)
	}
	if recoveringFromOffline {
		s.logger.Info("storage element recovered", "id", se.ID, "name", se.Name)
	}
	return nil
}

func (s *Service) capacityStatus(mode model.Mode, totalBytes, usedBytes int64) model.CapacityStatus {
	thresholds := capacity.Derive(mode, totalBytes)
	return capacity.StatusFor(mode, thresholds, totalBytes-usedBytes)
}

func (s *Service) notify(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, message); err != nil && s.logger != nil {
		s.logger.Warn("sending storage element notification failed", "error", err)
	}
}

// Run calls SyncOne for every registered Storage Element every interval,
// until ctx is cancelled (§4.15 default 60s). Grounded on the Health
// Reporter's ticker-loop shape.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncAll(ctx)
		}
	}
}

func (s *Service) syncAll(ctx context.Context) {
	s.SyncAll(ctx)
}

// SyncAll runs SyncOne for every registered Storage Element, returning how
// many were attempted. Exposed directly for the on-demand
// POST /storage-elements/sync-all operator action (§6.2), distinct from
// the internal ticker loop.
func (s *Service) SyncAll(ctx context.Context) (int, error) {
	elements, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing storage elements for sync: %w", err)
	}
	for _, se := range elements {
		if err := s.SyncOne(ctx, se); err != nil && s.logger != nil {
			s.logger.Error("syncing storage element", "id", se.ID, "error", err)
		}
	}
	return len(elements), nil
}

// SyncByID runs SyncOne for a single registered Storage Element, for the
// on-demand POST /storage-elements/sync/{id} operator action (§6.2).
func (s *Service) SyncByID(ctx context.Context, id uuid.UUID) error {
	se, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up storage element: %w", err)
	}
	return s.SyncOne(ctx, se)
}

// StatsSummary is the GET /storage-elements/stats/summary payload: a
// pool-wide rollup an operator uses to judge overall capacity headroom
// without listing every element individually.
type StatsSummary struct {
	Total             int   `json:"total"`
	Operational       int   `json:"operational"`
	Offline           int   `json:"offline"`
	TotalCapacityByte int64 `json:"total_capacity_bytes"`
	UsedCapacityByte  int64 `json:"used_capacity_bytes"`
	TotalFileCount    int64 `json:"total_file_count"`
}

func (s *Service) Stats(ctx context.Context) (StatsSummary, error) {
	elements, err := s.store.List(ctx)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("listing storage elements for stats: %w", err)
	}
	summary := StatsSummary{Total: len(elements)}
	for _, se := range elements {
		if se.Status == StatusOperational {
			summary.Operational++
		} else {
			summary.Offline++
		}
		summary.TotalCapacityByte += se.CapacityTotal
		summary.UsedCapacityByte += se.CapacityUsed
		summary.TotalFileCount += se.FileCount
	}
	return summary, nil
}

// Delete removes a Storage Element iff file_count == 0; callers must have
// already verified the requester holds the super_admin role (§4.15).
func (s *Service) Delete(ctx context.Context, id uuid.UUID, requesterIsSuperAdmin bool) error {
	if !requesterIsSuperAdmin {
		return fmt.Errorf("deleting a storage element requires the super_admin role")
	}
	se, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up storage element: %w", err)
	}
	if se.FileCount != 0 {
		return fmt.Errorf("storage element %s still holds %d files", se.Name, se.FileCount)
	}
	return s.store.Delete(ctx, id)
}
