package jwtkeys

import (
	"context"
	"sync"

	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// LocalKeySetCache holds the current KeySet loaded from the Admin schema's
// own key table, refreshed after every rotation. Mirrors
// jwtauth.RemoteKeySetCache's swap-under-lock shape, but a Storage Element
// fetches keys over HTTP while Admin, as the key's owner, loads them
// directly from its database.
type LocalKeySetCache struct {
	store keyStore

	mu  sync.RWMutex
	set *jwtauth.KeySet
}

func NewLocalKeySetCache(store keyStore) *LocalKeySetCache {
	return &LocalKeySetCache{store: store, set: jwtauth.NewKeySet(nil)}
}

// Refresh reloads the KeySet from the store.
func (c *LocalKeySetCache) Refresh(ctx context.Context) error {
	set, err := LoadKeySet(ctx, c.store)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.set = set
	c.mu.Unlock()
	return nil
}

// KeySet returns the currently cached key set, satisfying the keySource
// interface both pkg/admin/auth and pkg/jwtauth.NewValidator/NewIssuer
// callers depend on.
func (c *LocalKeySetCache) KeySet() *jwtauth.KeySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}
