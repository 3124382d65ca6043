package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Locker.Acquire when another process holds the lock.
var ErrLocked = errors.New("seed lock is held by another process")

// ReleaseFunc gives a lock back.
type ReleaseFunc func(ctx context.Context) error

// Locker provides mutual exclusion between seeder processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// NoopLocker always succeeds. It is used when no Redis is configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}

type releaser interface {
	Release(ctx context.Context) error
}

// RedisLocker holds a TTL-bound Redis lock for the duration of a run.
type RedisLocker struct {
	ttl    time.Duration
	obtain func(ctx context.Context, key string, ttl time.Duration) (releaser, error)
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	locks := redislock.New(client)
	return &RedisLocker{
		ttl: ttl,
		obtain: func(ctx context.Context, key string, ttl time.Duration) (releaser, error) {
			return locks.Obtain(ctx, key, ttl, nil)
		},
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	lock, err := l.obtain(ctx, key, l.ttl)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
