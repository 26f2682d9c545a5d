package blogsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a sync pass against overlapping runs in other processes.
// Lock returns ErrSyncInProgress when the lock is held elsewhere.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context) (func(), error) { return func() {}, nil }

// NoopLocker never blocks. Overlapping runs from separate processes are not
// excluded when it is used.
func NoopLocker() Locker { return noopLocker{} }

// RedisLocker is a single-instance Redis lock: SET NX with a TTL, released
// only by the holder of the token.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisLocker builds a locker on key. The TTL bounds how long a crashed
// holder can block later runs.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// NewRedisLockerFromURL connects to redisURL and verifies the connection.
func NewRedisLockerFromURL(ctx context.Context, redisURL, key string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lock: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("lock: ping redis: %w", err)
	}
	return NewRedisLocker(client, key, ttl), nil
}

// Lock acquires the lock or returns ErrSyncInProgress.
func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	return func() {
		// The request context may be gone by now; release regardless.
		unlockScript.Run(context.Background(), l.client, []string{l.key}, token)
	}, nil
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
