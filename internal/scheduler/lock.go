package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock keeps trigger replicas from polling at the same time.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisStore is the subset of Redis the lock needs.
type RedisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	// DeleteIfEquals removes key only while it still holds value, in one
	// server-side step.
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

// RedisLock implements Lock with SETNX + TTL. The TTL bounds how long a
// crashed holder can block other replicas.
type RedisLock struct {
	store RedisStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	owner string
}

func NewRedisLock(store RedisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis store required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owner = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the lock only while this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == "" {
		return nil
	}
	if _, err := l.store.DeleteIfEquals(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.owner = ""
	return nil
}

// LocalLock is the single-process fallback when no Redis is configured.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}

// redisClient adapts go-redis commands to RedisStore.
type redisClient struct {
	cmd redis.Cmdable
}

func (c redisClient) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c redisClient) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	return deleteIfEquals(ctx, c.cmd, key, value)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func deleteIfEquals(ctx context.Context, s redis.Scripter, key, value string) (bool, error) {
	n, err := releaseScript.Run(ctx, s, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// OpenRedis parses REDIS_URL, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisLockFromClient(client redis.Cmdable, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	return NewRedisLock(redisClient{cmd: client}, key, ttl)
}
