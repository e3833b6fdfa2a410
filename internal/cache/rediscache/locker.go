package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/RIDBox/internal/cache"
	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Locker is a cross-process mutex on top of redislock.
type Locker struct {
	l *redislock.Client
}

func NewLocker(c *redis.Client) *Locker {
	return &Locker{l: redislock.New(c)}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (cache.Lease, bool, error) {
	lock, err := l.l.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "obtain redis lock")
	}
	return &lease{lock: lock}, true, nil
}

type lease struct {
	lock *redislock.Lock
}

func (l *lease) Refresh(ctx context.Context, ttl time.Duration) error {
	return errors.Wrap(l.lock.Refresh(ctx, ttl, nil), "refresh redis lock")
}

func (l *lease) Release(ctx context.Context) error {
	if err := l.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return errors.Wrap(err, "release redis lock")
	}
	return nil
}
