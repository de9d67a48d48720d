package redist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *RedisLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewRedisLocker(client, time.Minute)
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	ctx := context.Background()
	locker := newTestLocker(t)

	ok, err := locker.Acquire(ctx, "100", "run-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = locker.Acquire(ctx, "100", "run-b")
	require.NoError(t, err)
	require.False(t, ok, "second run for the same client must be rejected")

	ok, err = locker.Acquire(ctx, "200", "run-c")
	require.NoError(t, err)
	require.True(t, ok, "runs for distinct clients are independent")

	require.NoError(t, locker.Release(ctx, "100", "run-a"))
	ok, err = locker.Acquire(ctx, "100", "run-b")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockerReleaseOnlyOwnLock(t *testing.T) {
	ctx := context.Background()
	locker := newTestLocker(t)

	ok, err := locker.Acquire(ctx, "100", "run-a")
	require.NoError(t, err)
	require.True(t, ok)

	// A stale run releasing after losing the lock must not free the holder.
	require.NoError(t, locker.Release(ctx, "100", "run-stale"))
	ok, err = locker.Acquire(ctx, "100", "run-b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisLockerReleaseWithoutLockIsNoop(t *testing.T) {
	locker := newTestLocker(t)
	require.NoError(t, locker.Release(context.Background(), "100", "run-a"))
}

func TestRunLockKey(t *testing.T) {
	require.Equal(t, "costredist:client:100:run:lock", RunLockKey("100"))
}
