package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLocker is the key-value backend: SETNX with a TTL so a crashed holder
// cannot wedge a task forever.
type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

const defaultLockTTL = 30 * time.Minute

func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{client: client, ttl: defaultLockTTL}
}

func (l *redisLocker) TryAcquire(ctx context.Context, name string) (bool, error) {
	return l.client.SetNX(ctx, "lock:"+name, "1", l.ttl).Result()
}

func (l *redisLocker) Release(ctx context.Context, name string) error {
	return l.client.Del(ctx, "lock:"+name).Err()
}
