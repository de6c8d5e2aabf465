package jwtkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/distlock"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// LockKey is the distlock key the rotator guards itself with (§4.12: "two
// rotations MUST NOT overlap").
const LockKey = "kr_lock"
const lockTTL = 2 * time.Minute

// keyStore is the subset of *Store the rotator depends on, kept narrow so
// tests can substitute a fake instead of a live Postgres pool.
type keyStore interface {
	Insert(ctx context.Context, k jwtauth.Key) error
	All(ctx context.Context) ([]jwtauth.Key, error)
	Deactivate(ctx context.Context, version uuid.UUID) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// locker is the subset of *distlock.Lock the rotator depends on.
type locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (distlock.Handle, error)
	Release(ctx context.Context, h distlock.Handle) error
}

// Rotator runs the §4.12 scheduled/on-demand rotation: generate, persist,
// promote to primary, retire expired keys. A distlock guarantees two
// rotations never overlap.
type Rotator struct {
	Store            keyStore
	Lock             locker
	RotationInterval time.Duration
	SafetyWindow     time.Duration
	Logger           *slog.Logger
}

// NewRotator builds a Rotator over store, guarded by a lock keyed "kr_lock".
func NewRotator(store keyStore, lock locker, rotationInterval, safetyWindow time.Duration, logger *slog.Logger) *Rotator {
	return &Rotator{Store: store, Lock: lock, RotationInterval: rotationInterval, SafetyWindow: safetyWindow, Logger: logger}
}

// Rotate performs one rotation cycle (§4.12 steps 1-4). ErrHeld from a
// concurrent rotation is treated as a no-op, not an error, since rotation is
// idempotent from the caller's perspective — the other rotation will finish
// the work.
func (r *Rotator) Rotate(ctx context.Context, now time.Time) error {
	handle, err := r.Lock.Acquire(ctx, lockTTL)
	if err != nil {
		if errors.Is(err, distlock.ErrHeld) {
			if r.Logger != nil {
				r.Logger.Info("jwt key rotation already in progress, skipping")
			}
			return nil
		}
		return fmt.Errorf("acquiring rotation lock: %w", err)
	}
	defer func() {
		if err := r.Lock.Release(ctx, handle); err != nil && r.Logger != nil {
			r.Logger.Warn("releasing rotation lock", "error", err)
		}
	}()

	newKey, err := jwtauth.GenerateKey(now, now.Add(2*r.RotationInterval))
	if err != nil {
		return fmt.Errorf("generating new jwt key: %w", err)
	}
	if err := r.Store.Insert(ctx, newKey); err != nil {
		return fmt.Errorf("persisting new jwt key: %w", err)
	}
	if r.Logger != nil {
		r.Logger.Info("rotated jwt signing key", "version", newKey.Version)
	}

	keys, err := r.Store.All(ctx)
	if err != nil {
		return fmt.Errorf("listing jwt keys after rotation: %w", err)
	}
	for _, k := range keys {
		if k.IsActive && k.ExpiresAt.Before(now) {
			if err := r.Store.Deactivate(ctx, k.Version); err != nil {
				if r.Logger != nil {
					r.Logger.Warn("deactivating expired jwt key", "version", k.Version, "error", err)
				}
				continue
			}
			if r.Logger != nil {
				r.Logger.Info("deactivated expired jwt key", "version", k.Version)
			}
		}
	}

	if _, err := r.Store.DeleteExpiredBefore(ctx, now.Add(-r.SafetyWindow)); err != nil && r.Logger != nil {
		r.Logger.Warn("purging retired jwt keys", "error", err)
	}

	return nil
}

// Run ticks Rotate on RotationInterval until ctx is cancelled.
func (r *Rotator) Run(ctx context.Context) {
	ticker := time.NewTicker(r.RotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Rotate(ctx, time.Now().UTC()); err != nil && r.Logger != nil {
				r.Logger.Error("scheduled jwt key rotation failed", "error", err)
			}
		}
	}
}

// LoadKeySet builds a jwtauth.KeySet from the currently persisted rows, for
// use by the Issuer/Validator after a (re)start or rotation.
func LoadKeySet(ctx context.Context, store keyStore) (*jwtauth.KeySet, error) {
	keys, err := store.All(ctx)
	if err != nil {
		return nil, err
	}
	return jwtauth.NewKeySet(keys), nil
}
