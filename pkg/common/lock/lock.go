package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker is a named mutual-exclusion lock. Acquire is a single atomic
// acquire-if-free step; it never blocks or queues waiters.
type Locker interface {
	Acquire(ctx context.Context, name string) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}

// releaseScript deletes the lock only when the caller still owns it, so a
// lock that expired and was re-acquired by another owner is never clobbered.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire takes the named lock with a fresh owner token. ok is false when the
// lock is already held; callers surface that as a busy outcome, not an error.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (string, bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, "lock:"+name, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, name, token string) error {
	return releaseScript.Run(ctx, l.client, []string{"lock:" + name}, token).Err()
}
