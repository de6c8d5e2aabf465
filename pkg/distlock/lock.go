// Package distlock implements a simple Redis-backed mutual-exclusion lock,
// used both by the Storage Element cache synchronizer (`se:{id}:cache_lock`,
// §4.9) and the Admin key rotator (`kr_lock`, §4.12). It follows the
// SET-then-compare-and-delete idiom for safe release rather than a plain
// DEL, so a lock holder never releases a lock it no longer owns after its
// TTL has already expired and been reacquired by someone else.
package distlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// client is the subset of *redis.Client the lock needs, kept narrow for
// testability against a fake.
type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// releaseScript deletes key (and its priority companion key, if any) only if
// its value still matches the token the caller was given on acquisition, so
// a lock whose TTL already lapsed and was reacquired by someone else is left
// alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	redis.call("DEL", KEYS[2])
	return 1
else
	return 0
end`

// acquirePriorityScript takes the lock unconditionally when free. When held,
// it preempts the current holder only if the requester's priority outranks
// the holder's (lower Priority value wins, §4.9: "lower priority cannot
// preempt a higher-priority holder").
const acquirePriorityScript = `
local token = redis.call("GET", KEYS[1])
if token == false then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
	return 1
end
local holderPriority = tonumber(redis.call("GET", KEYS[2]))
if holderPriority == nil or tonumber(ARGV[2]) < holderPriority then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0`

// ErrHeld is returned by Acquire when the lock is already held by someone
// else (and, for AcquireWithPriority, that holder outranks the requester).
var ErrHeld = errors.New("distlock: already held")

// Priority orders competing requests for a single lock key (§4.9): P1 is
// the highest tier, P4 the lowest. A request from a higher tier preempts a
// lower-tier holder instead of being rejected as ErrHeld; requests within
// the same tier never preempt each other.
type Priority int

const (
	PriorityP1 Priority = 1
	PriorityP2 Priority = 2
	PriorityP3 Priority = 3
	PriorityP4 Priority = 4
)

// Lock is a single named distributed lock.
type Lock struct {
	rdb client
	key string
}

// New creates a Lock bound to key (e.g. "se:local01:cache_lock").
func New(rdb *redis.Client, key string) *Lock {
	return &Lock{rdb: rdb, key: key}
}

// Handle is the proof of ownership returned by a successful Acquire; it
// must be passed to Release.
type Handle struct {
	token string
}

// Acquire attempts to take the lock with the given TTL, returning ErrHeld
// (not wrapped further) if someone else already holds it. Callers needing
// non-blocking "skip if busy" semantics (lazy rebuild, P3) check for
// ErrHeld directly rather than retrying.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) (Handle, error) {
	token := uuid.New().String()
	ok, err := l.rdb.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return Handle{}, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	if !ok {
		return Handle{}, ErrHeld
	}
	return Handle{token: token}, nil
}

// Release gives up the lock if h is still the current holder.
func (l *Lock) Release(ctx context.Context, h Handle) error {
	if err := l.rdb.Eval(ctx, releaseScript, []string{l.key, l.priorityKey()}, h.token).Err(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}
	return nil
}

// AcquireWithPriority is Acquire for callers participating in the priority
// scheme (§4.9): it takes the lock immediately if free, preempts a
// lower-priority holder, and returns ErrHeld only when the current holder is
// at the same tier or outranks the requester.
func (l *Lock) AcquireWithPriority(ctx context.Context, ttl time.Duration, priority Priority) (Handle, error) {
	token := uuid.New().String()
	res, err := l.rdb.Eval(ctx, acquirePriorityScript, []string{l.key, l.priorityKey()},
		token, int(priority), ttl.Milliseconds(),
	).Result()
	if err != nil {
		return Handle{}, fmt.Errorf("acquiring priority lock %s: %w", l.key, err)
	}
	acquired, _ := res.(int64)
	if acquired != 1 {
		return Handle{}, ErrHeld
	}
	return Handle{token: token}, nil
}

func (l *Lock) priorityKey() string {
	return l.key + ":priority"
}

// Holder returns the token currently holding the lock, or "" if free.
func (l *Lock) Holder(ctx context.Context) (string, error) {
	val, err := l.rdb.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading lock holder %s: %w", l.key, err)
	}
	return val, nil
}
