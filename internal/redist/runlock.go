package redist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLockKey builds the redis key guarding one client's redistribution run.
func RunLockKey(client string) string {
	return fmt.Sprintf("costredist:client:%s:run:lock", client)
}

// RedisLocker implements Locker with SET NX and a TTL, so a crashed run
// cannot hold a client hostage forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker constructs a redis-backed run lock.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire takes the client's run lock. Returns false when another run holds it.
func (l *RedisLocker) Acquire(ctx context.Context, client, runID string) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("redist: locker not configured")
	}
	return l.client.SetNX(ctx, RunLockKey(client), runID, l.ttl).Result()
}

// Release drops the lock, but only when this run still owns it.
func (l *RedisLocker) Release(ctx context.Context, client, runID string) error {
	if l == nil || l.client == nil {
		return errors.New("redist: locker not configured")
	}
	key := RunLockKey(client)
	val, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if val != runID {
		return nil
	}
	return l.client.Del(ctx, key).Err()
}
