// Package gc implements Admin's Garbage Collector (§4.16): three
// strategies, executed in order on a configurable interval, each deleting
// objects from their owning Storage Element and updating the File
// Registry (§4.18) to reflect it.
package gc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/admin/fileregistry"
	"github.com/BigKAA/artStore-sub005/pkg/admin/storageelement"
)

// Notifier reports actions that have exhausted their retry budget (§4.19).
// A nil Notifier is a no-op.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// editCleanupSafetyMargin and orphanSafetyMargin are the §4.16 defaults.
const (
	editCleanupSafetyMargin = 24 * time.Hour
	orphanSafetyMargin      = 7 * 24 * time.Hour
	defaultInterval         = 6 * time.Hour
)

// elementEndpoints resolves a Storage Element id to its HTTP endpoint.
type elementEndpoints interface {
	Get(ctx context.Context, id uuid.UUID) (storageelement.StorageElement, error)
}

// Collector runs the three GC strategies in order (§4.16).
type Collector struct {
	registry *fileregistry.Store
	elements elementEndpoints
	se       *SEClient
	notifier Notifier
	logger   *slog.Logger
	retries  *retryTracker
}

func NewCollector(registry *fileregistry.Store, elements elementEndpoints, se *SEClient, notifier Notifier, logger *slog.Logger) *Collector {
	return &Collector{
		registry: registry,
		elements: elements,
		se:       se,
		notifier: notifier,
		logger:   logger,
		retries:  newRetryTracker(),
	}
}

// RunOnce executes strategies (a), (b), (c) in order, as one GC cycle.
func (c *Collector) RunOnce(ctx context.Context) {
	now := time.Now().UTC()
	c.expireTemporary(ctx, now)
	c.cleanupFinalizedEditCopies(ctx, now)
	c.sweepOrphans(ctx, now)
}

// Run executes RunOnce every interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// expireTemporary is strategy (a): delete files whose retention is
// temporary and TTL has passed, then mark the registry entry soft-deleted.
func (c *Collector) expireTemporary(ctx context.Context, now time.Time) {
	entries, err := c.registry.ListExpiredTemporary(ctx, now)
	if err != nil {
		c.logError("listing expired temporary entries", err)
		return
	}
	for _, e := range entries {
		if !e.Expired(now) {
			continue
		}
		key := "expire:" + e.FileID.String()
		c.attempt(ctx, key, now, func() error {
			se, err := c.elements.Get(ctx, e.ElementID)
			if err != nil {
				return fmt.Errorf("resolving storage element %s: %w", e.ElementID, err)
			}
			if err := c.se.DeleteFile(ctx, se.Endpoint, e.FileID); err != nil {
				return fmt.Errorf("deleting expired file %s: %w", e.FileID, err)
			}
			return c.registry.MarkSoftDeleted(ctx, e.FileID, now)
		}, fmt.Sprintf("TTL-based deletion of file %s exhausted its retry budget", e.FileID))
	}
}

// cleanupFinalizedEditCopies is strategy (b): once a file is confirmed
// present on a later-stage SE and the safety margin has elapsed, remove
// its edit-SE copy only.
func (c *Collector) cleanupFinalizedEditCopies(ctx context.Context, now time.Time) {
	entries, err := c.registry.ListFinalizedWithEditCopy(ctx)
	if err != nil {
		c.logError("listing finalized entries", err)
		return
	}
	for _, e := range entries {
		if !e.EligibleForEditCleanup(now, editCleanupSafetyMargin) {
			continue
		}
		key := "finalize-cleanup:" + e.FileID.String()
		c.attempt(ctx, key, now, func() error {
			se, err := c.elements.Get(ctx, e.ElementID)
			if err != nil {
				return fmt.Errorf("resolving storage element %s: %w", e.ElementID, err)
			}
			if err := c.se.DeleteFile(ctx, se.Endpoint, e.FileID); err != nil {
				return fmt.Errorf("deleting edit-copy of finalized file %s: %w", e.FileID, err)
			}
			return c.registry.ClearFinalizedMode(ctx, e.FileID)
		}, fmt.Sprintf("edit-copy cleanup of finalized file %s exhausted its retry budget", e.FileID))
	}
}

// sweepOrphans is strategy (c): delete objects observed with no File
// Registry entry, after at least two observations separated by the
// safety margin.
func (c *Collector) sweepOrphans(ctx context.Context, now time.Time) {
	observations, err := c.registry.ListOrphanObservations(ctx)
	if err != nil {
		c.logError("listing orphan observations", err)
		return
	}
	for _, o := range observations {
		if !o.EligibleForDeletion(now, orphanSafetyMargin) {
			continue
		}
		key := "orphan:" + o.ElementID.String() + ":" + o.StoragePath
		c.attempt(ctx, key, now, func() error {
			se, err := c.elements.Get(ctx, o.ElementID)
			if err != nil {
				return fmt.Errorf("resolving storage element %s: %w", o.ElementID, err)
			}
			if err := c.se.DeleteObject(ctx, se.Endpoint, o.StoragePath); err != nil {
				return fmt.Errorf("deleting orphan object %s on %s: %w", o.StoragePath, o.ElementID, err)
			}
			return c.registry.DeleteObservation(ctx, o.ElementID, o.StoragePath)
		}, fmt.Sprintf("orphan sweep of %s on storage element %s exhausted its retry budget", o.StoragePath, o.ElementID))
	}
}

// attempt runs action if the retry schedule for key is due this cycle,
// logging and (on retry-budget exhaustion) notifying on failure.
func (c *Collector) attempt(ctx context.Context, key string, now time.Time, action func() error, exhaustedMessage string) {
	if !c.retries.ShouldAttempt(key, now) {
		return
	}
	if err := action(); err != nil {
		c.logError("gc action failed, will retry on a later cycle", err)
		if c.retries.RecordFailure(key, now) {
			c.notify(ctx, exhaustedMessage)
		}
		return
	}
	c.retries.RecordSuccess(key)
}

func (c *Collector) notify(ctx context.Context, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, message); err != nil && c.logger != nil {
		c.logger.Warn("sending gc notification failed", "error", err)
	}
}

func (c *Collector) logError(msg string, err error) {
	if c.logger != nil {
		c.logger.Error(msg, "error", err)
	}
}
