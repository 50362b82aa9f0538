package service

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// ErrLockHeld reports that another caller holds the lock.
var ErrLockHeld = errors.New("lock held")

// Locker takes a short-lived named lock and returns its release func.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// NoopLocker always succeeds. Used when no redis is configured.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

// RedisLocker takes locks with bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	prefix string
}

func NewRedisLocker(client redislock.RedisClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(client), prefix: "caredesk:lock:"}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}
