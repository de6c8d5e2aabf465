package adminapp

import (
	"time"

	"github.com/BigKAA/artStore-sub005/pkg/admin/jwtkeys"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
)

// cacheBackedIssuer mints tokens against whatever KeySet the rotation cache
// currently holds, so a key rotation mid-run is picked up on the very next
// internal token the Garbage Collector mints rather than requiring a
// restart.
type cacheBackedIssuer struct {
	keys *jwtkeys.LocalKeySetCache
}

func (i cacheBackedIssuer) Issue(subject string, claims jwtauth.Claims, ttl time.Duration, now time.Time) (string, error) {
	return jwtauth.NewIssuer(i.keys.KeySet()).Issue(subject, claims, ttl, now)
}
