package distlock

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeClient is a minimal in-memory stand-in for *redis.Client exercising
// only SetNX/Get/Eval, enough to validate the acquire/release protocol
// without a live Redis server.
type fakeClient struct {
	values map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: make(map[string]string)}
}

func (f *fakeClient) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := f.values[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	f.values[key] = value.(string)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

// Eval emulates both Lua scripts this package runs: a 1-arg call is the
// release (compare-token-then-delete) protocol; a 3-arg call is the
// priority-acquire protocol.
func (f *fakeClient) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if len(args) == 1 {
		key := keys[0]
		token := args[0].(string)
		if f.values[key] == token {
			delete(f.values, key)
			if len(keys) > 1 {
				delete(f.values, keys[1])
			}
			cmd.SetVal(int64(1))
		} else {
			cmd.SetVal(int64(0))
		}
		return cmd
	}

	lockKey, prioKey := keys[0], keys[1]
	token := args[0].(string)
	priority := args[1].(int)
	if _, held := f.values[lockKey]; !held {
		f.values[lockKey] = token
		f.values[prioKey] = strconv.Itoa(priority)
		cmd.SetVal(int64(1))
		return cmd
	}
	holderPriority, _ := strconv.Atoi(f.values[prioKey])
	if priority < holderPriority {
		f.values[lockKey] = token
		f.values[prioKey] = strconv.Itoa(priority)
		cmd.SetVal(int64(1))
	} else {
		cmd.SetVal(int64(0))
	}
	return cmd
}

func TestAcquireThenHeldFailsSecondAcquire(t *testing.T) {
	rdb := newFakeClient()
	l := &Lock{rdb: rdb, key: "se:local01:cache_lock"}
	ctx := context.Background()

	if _, err := l.Acquire(ctx, time.Minute); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	_, err := l.Acquire(ctx, time.Minute)
	if err != ErrHeld {
		t.Errorf("second Acquire() error = %v, want ErrHeld", err)
	}
}

func TestReleaseThenReacquire(t *testing.T) {
	rdb := newFakeClient()
	l := &Lock{rdb: rdb, key: "se:local01:cache_lock"}
	ctx := context.Background()

	h, err := l.Acquire(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(ctx, h); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, err := l.Acquire(ctx, time.Minute); err != nil {
		t.Errorf("Acquire() after Release() error = %v", err)
	}
}

func TestReleaseDoesNotRemoveSomeoneElsesLock(t *testing.T) {
	rdb := newFakeClient()
	l := &Lock{rdb: rdb, key: "se:local01:cache_lock"}
	ctx := context.Background()

	h, err := l.Acquire(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Simulate the TTL lapsing and someone else reacquiring under the same
	// key before the original holder calls Release.
	delete(rdb.values, l.key)
	if _, err := l.Acquire(ctx, time.Minute); err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}

	if err := l.Release(ctx, h); err != nil {
		t.Fatalf("stale Release() error = %v", err)
	}

	holder, err := l.Holder(ctx)
	if err != nil {
		t.Fatalf("Holder() error = %v", err)
	}
	if holder == "" {
		t.Error("stale Release() removed the new holder's lock")
	}
}

func TestAcquireWithPriorityPreemptsLowerTierHolder(t *testing.T) {
	rdb := newFakeClient()
	l := &Lock{rdb: rdb, key: "se:local01:cache_lock"}
	ctx := context.Background()

	if _, err := l.AcquireWithPriority(ctx, time.Minute, PriorityP4); err != nil {
		t.Fatalf("P4 AcquireWithPriority() error = %v", err)
	}

	if _, err := l.AcquireWithPriority(ctx, time.Minute, PriorityP1); err != nil {
		t.Errorf("P1 AcquireWithPriority() over a P4 holder error = %v, want nil (should preempt)", err)
	}
}

func TestAcquireWithPrioritySameTierDoesNotPreempt(t *testing.T) {
	rdb := newFakeClient()
	l := &Lock{rdb: rdb, key: "se:local01:cache_lock"}
	ctx := context.Background()

	if _, err := l.AcquireWithPriority(ctx, time.Minute, PriorityP1); err != nil {
		t.Fatalf("first P1 AcquireWithPriority() error = %v", err)
	}

	if _, err := l.AcquireWithPriority(ctx, time.Minute, PriorityP1); err != ErrHeld {
		t.Errorf("second P1 AcquireWithPriority() error = %v, want ErrHeld", err)
	}
}

func TestAcquireWithPriorityLowerTierCannotPreempt(t *testing.T) {
	rdb := newFakeClient()
	l := &Lock{rdb: rdb, key: "se:local01:cache_lock"}
	ctx := context.Background()

	if _, err := l.AcquireWithPriority(ctx, time.Minute, PriorityP1); err != nil {
		t.Fatalf("P1 AcquireWithPriority() error = %v", err)
	}

	if _, err := l.AcquireWithPriority(ctx, time.Minute, PriorityP3); err != ErrHeld {
		t.Errorf("P3 AcquireWithPriority() over a P1 holder error = %v, want ErrHeld", err)
	}
}

func TestHolderEmptyWhenFree(t *testing.T) {
	rdb := newFakeClient()
	l := &Lock{rdb: rdb, key: "se:local01:cache_lock"}

	holder, err := l.Holder(context.Background())
	if err != nil {
		t.Fatalf("Holder() error = %v", err)
	}
	if holder != "" {
		t.Errorf("Holder() = %q, want empty", holder)
	}
}
