package jwtkeys

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BigKAA/artStore-sub005/pkg/distlock"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

type fakeStore struct {
	keys map[uuid.UUID]jwtauth.Key
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[uuid.UUID]jwtauth.Key)}
}

func (s *fakeStore) Insert(ctx context.Context, k jwtauth.Key) error {
	s.keys[k.Version] = k
	return nil
}

func (s *fakeStore) All(ctx context.Context) ([]jwtauth.Key, error) {
	out := make([]jwtauth.Key, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	return out, nil
}

func (s *fakeStore) Deactivate(ctx context.Context, version uuid.UUID) error {
	k, ok := s.keys[version]
	if !ok {
		return nil
	}
	k.IsActive = false
	s.keys[version] = k
	return nil
}

func (s *fakeStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for v, k := range s.keys {
		if !k.IsActive && k.ExpiresAt.Before(cutoff) {
			delete(s.keys, v)
			n++
		}
	}
	return n, nil
}

type fakeLocker struct {
	held bool
}

func (l *fakeLocker) Acquire(ctx context.Context, ttl time.Duration) (distlock.Handle, error) {
	if l.held {
		return distlock.Handle{}, distlock.ErrHeld
	}
	l.held = true
	return distlock.Handle{}, nil
}

func (l *fakeLocker) Release(ctx context.Context, h distlock.Handle) error {
	l.held = false
	return nil
}

func TestRotateInsertsNewActiveKey(t *testing.T) {
	store := newFakeStore()
	lock := &fakeLocker{}
	r := NewRotator(store, lock, 24*time.Hour, 7*24*time.Hour, nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := r.Rotate(context.Background(), now); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	keys, _ := store.All(context.Background())
	if len(keys) != 1 {
		t.Fatalf("keys after rotate = %d, want 1", len(keys))
	}
	if !keys[0].IsActive {
		t.Errorf("new key IsActive = false, want true")
	}
	if lock.held {
		t.Errorf("lock still held after Rotate returned")
	}
}

func TestRotateDeactivatesExpiredKeys(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old, _ := jwtauth.GenerateKey(now.Add(-48*time.Hour), now.Add(-time.Hour))
	store.keys[old.Version] = old

	r := NewRotator(store, &fakeLocker{}, 24*time.Hour, 7*24*time.Hour, nil)
	if err := r.Rotate(context.Background(), now); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	got := store.keys[old.Version]
	if got.IsActive {
		t.Errorf("expired key still active after rotate")
	}
}

func TestRotateSkipsWhenLockHeld(t *testing.T) {
	store := newFakeStore()
	lock := &fakeLocker{held: true}
	r := NewRotator(store, lock, 24*time.Hour, 7*24*time.Hour, nil)

	if err := r.Rotate(context.Background(), time.Now()); err != nil {
		t.Fatalf("Rotate() error = %v, want nil (lock held is a no-op)", err)
	}
	if len(store.keys) != 0 {
		t.Errorf("keys inserted = %d, want 0 when lock held", len(store.keys))
	}
}

func TestRotatePurgesRetiredKeysPastSafetyWindow(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	safetyWindow := 7 * 24 * time.Hour

	retired := jwtauth.Key{
		Version:   uuid.New(),
		CreatedAt: now.Add(-60 * 24 * time.Hour),
		ExpiresAt: now.Add(-10 * 24 * time.Hour),
		IsActive:  false,
	}
	store.keys[retired.Version] = retired

	r := NewRotator(store, &fakeLocker{}, 24*time.Hour, safetyWindow, nil)
	if err := r.Rotate(context.Background(), now); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if _, ok := store.keys[retired.Version]; ok {
		t.Errorf("retired key past safety window was not purged")
	}
}
