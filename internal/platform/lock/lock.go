// Package lock provides the mutual exclusion the reminder dispatcher uses so
// that only one replica processes a given tick.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locker acquires short-lived named locks. Acquire reports false without
// error when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Noop always grants the lock. It is used when no Redis is configured and
// the process is the only dispatcher.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }

// RedisLocker implements Locker with SET NX PX. Locks are never released
// explicitly; they expire with their TTL so a crashed holder cannot wedge
// the key.
type RedisLocker struct {
	client *redis.Client
	prefix string
	owner  string
}

// NewRedisLocker wraps an existing client. owner is stored as the lock value
// to make the holder visible when inspecting Redis.
func NewRedisLocker(client *redis.Client, prefix, owner string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, owner: owner}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Holder returns the owner recorded for key, or "" when unlocked.
func (l *RedisLocker) Holder(ctx context.Context, key string) (string, error) {
	v, err := l.client.Get(ctx, l.prefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock %s: %w", key, err)
	}
	return v, nil
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
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
