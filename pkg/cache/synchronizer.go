package cache

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/distlock"
	"github.com/BigKAA/artStore-sub005/pkg/model"
	"github.com/BigKAA/artStore-sub005/pkg/sidecar"
)

// defaultFullRebuildTimeout is the default ceiling on a full rebuild before
// the lock is released and partial progress is left in place (§4.9 P1).
const defaultFullRebuildTimeout = 30 * time.Minute

// RebuildStats tallies what a full or incremental rebuild did.
type RebuildStats struct {
	Scanned int
	Created int
	Updated int
	Deleted int
	Errors  []string
}

// ConsistencyReport is the dry-run output of a consistency check (§4.9 P2).
type ConsistencyReport struct {
	OrphanCache    int
	OrphanAttr     int
	ExpiredCache   int
	SampledOrphans []uuid.UUID
}

// Synchronizer runs the four cache-synchronization operations against a
// single SE's local sidecar tree, serialized by a Redis distributed lock
// whose acquisition is priority-tiered (§4.9): full/incremental rebuild at
// P1, consistency check at P2, lazy rebuild at P3, expired cleanup at P4.
// A higher tier preempts a lower-tier holder; same-tier and lower-over-
// higher requests observe ErrHeld/apperr.RebuildInProgress as before.
type Synchronizer struct {
	Store              *Store
	BasePath           string
	TTLHours           func() int
	FullRebuildTimeout time.Duration
	Logger             *slog.Logger

	lock *distlock.Lock
}

// NewSynchronizer creates a Synchronizer guarded by the lock key
// "se:{elementID}:cache_lock".
func NewSynchronizer(store *Store, basePath string, ttlHours func() int, lock *distlock.Lock, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		Store:              store,
		BasePath:           basePath,
		TTLHours:           ttlHours,
		FullRebuildTimeout: defaultFullRebuildTimeout,
		Logger:             logger,
		lock:               lock,
	}
}

// FullRebuild truncates the cache table and rematerializes it from every
// sidecar under BasePath (§4.9 P1). A second full rebuild attempted while
// one is already running observes apperr.RebuildInProgress.
func (sy *Synchronizer) FullRebuild(ctx context.Context) (RebuildStats, error) {
	timeout := sy.FullRebuildTimeout
	if timeout <= 0 {
		timeout = defaultFullRebuildTimeout
	}

	handle, err := sy.lock.AcquireWithPriority(ctx, timeout, distlock.PriorityP1)
	if err != nil {
		if err == distlock.ErrHeld {
			return RebuildStats{}, apperr.New(apperr.RebuildInProgress, "a full rebuild is already in progress")
		}
		return RebuildStats{}, err
	}
	defer func() { _ = sy.lock.Release(ctx, handle) }()

	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sy.Store.Truncate(deadlineCtx); err != nil {
		return RebuildStats{}, err
	}

	stats := RebuildStats{}
	now := time.Now().UTC()
	walkErr := sy.walkSidecars(deadlineCtx, func(path string, f model.File) {
		stats.Scanned++
		row := model.FromFile(f, sy.TTLHours(), now)
		if err := sy.Store.Upsert(deadlineCtx, row); err != nil {
			stats.Errors = append(stats.Errors, path+": "+err.Error())
			return
		}
		stats.Created++
	})
	if walkErr != nil && deadlineCtx.Err() == nil {
		return stats, walkErr
	}
	// Deadline exceeded: lock is released by the deferred call above and
	// partial progress remains, by design (§4.9 P1).
	return stats, nil
}

// IncrementalRebuild adds cache rows for sidecars that lack one, never
// deleting existing rows. Idempotent (§4.9 P1).
func (sy *Synchronizer) IncrementalRebuild(ctx context.Context) (RebuildStats, error) {
	timeout := sy.FullRebuildTimeout
	if timeout <= 0 {
		timeout = defaultFullRebuildTimeout
	}

	handle, err := sy.lock.AcquireWithPriority(ctx, timeout, distlock.PriorityP1)
	if err != nil {
		if err == distlock.ErrHeld {
			return RebuildStats{}, apperr.New(apperr.RebuildInProgress, "a rebuild is already in progress")
		}
		return RebuildStats{}, err
	}
	defer func() { _ = sy.lock.Release(ctx, handle) }()

	existing, err := sy.Store.ListFileIDs(ctx)
	if err != nil {
		return RebuildStats{}, err
	}
	known := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}

	stats := RebuildStats{}
	now := time.Now().UTC()
	err = sy.walkSidecars(ctx, func(path string, f model.File) {
		stats.Scanned++
		if _, ok := known[f.FileID]; ok {
			return
		}
		row := model.FromFile(f, sy.TTLHours(), now)
		if err := sy.Store.Upsert(ctx, row); err != nil {
			stats.Errors = append(stats.Errors, path+": "+err.Error())
			return
		}
		stats.Created++
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// ConsistencyCheck is a dry run reporting orphan and expired counts without
// mutating anything (§4.9 P2).
func (sy *Synchronizer) ConsistencyCheck(ctx context.Context) (ConsistencyReport, error) {
	handle, err := sy.lock.AcquireWithPriority(ctx, time.Minute, distlock.PriorityP2)
	if err != nil {
		if err == distlock.ErrHeld {
			return ConsistencyReport{}, apperr.New(apperr.RebuildInProgress, "a rebuild is in progress, try again later")
		}
		return ConsistencyReport{}, err
	}
	defer func() { _ = sy.lock.Release(ctx, handle) }()

	cached, err := sy.Store.ListFileIDs(ctx)
	if err != nil {
		return ConsistencyReport{}, err
	}
	cachedSet := make(map[uuid.UUID]struct{}, len(cached))
	for _, id := range cached {
		cachedSet[id] = struct{}{}
	}

	onDisk := make(map[uuid.UUID]struct{})
	walkErr := sy.walkSidecars(ctx, func(_ string, f model.File) {
		onDisk[f.FileID] = struct{}{}
	})
	if walkErr != nil {
		return ConsistencyReport{}, walkErr
	}

	report := ConsistencyReport{}
	for id := range cachedSet {
		if _, ok := onDisk[id]; !ok {
			report.OrphanCache++
			if len(report.SampledOrphans) < 10 {
				report.SampledOrphans = append(report.SampledOrphans, id)
			}
		}
	}
	for id := range onDisk {
		if _, ok := cachedSet[id]; !ok {
			report.OrphanAttr++
		}
	}

	expired, err := sy.Store.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return ConsistencyReport{}, err
	}
	report.ExpiredCache = len(expired)

	return report, nil
}

// ExpiredCleanup deletes cache rows whose TTL has elapsed. Sidecars are
// never touched (§4.9 P4).
func (sy *Synchronizer) ExpiredCleanup(ctx context.Context) (int64, error) {
	handle, err := sy.lock.AcquireWithPriority(ctx, time.Minute, distlock.PriorityP4)
	if err != nil {
		if err == distlock.ErrHeld {
			return 0, apperr.New(apperr.RebuildInProgress, "a higher-priority operation is in progress")
		}
		return 0, err
	}
	defer func() { _ = sy.lock.Release(ctx, handle) }()

	ids, err := sy.Store.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return sy.Store.DeleteByIDs(ctx, ids)
}

// LazyRebuild rematerializes a single expired row, fired inline from
// download/update/search (§4.9 P3). It is non-blocking: if a full rebuild
// holds the exclusive lock, it returns ok=false and the caller serves the
// stale row instead.
func (sy *Synchronizer) LazyRebuild(ctx context.Context, sidecarPath string) (bool, error) {
	handle, err := sy.lock.AcquireWithPriority(ctx, 10*time.Second, distlock.PriorityP3)
	if err != nil {
		if err == distlock.ErrHeld {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = sy.lock.Release(ctx, handle) }()

	f, err := sidecar.Read(sidecarPath)
	if err != nil {
		return false, err
	}
	row := model.FromFile(f, sy.TTLHours(), time.Now().UTC())
	if err := sy.Store.Upsert(ctx, row); err != nil {
		return false, err
	}
	return true, nil
}

func (sy *Synchronizer) walkSidecars(ctx context.Context, visit func(path string, f model.File)) error {
	return filepath.WalkDir(sy.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(path, ".attr.json") {
			return nil
		}
		f, readErr := sidecar.Read(path)
		if readErr != nil {
			if sy.Logger != nil {
				sy.Logger.Warn("skipping unreadable sidecar", "path", path, "error", readErr)
			}
			return nil
		}
		visit(path, f)
		return nil
	})
}
