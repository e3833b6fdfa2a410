// Package cache declares the small storage contracts the services depend on;
// rediscache provides the Redis implementations.
package cache

import (
	"context"
	"time"
)

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type RateLimiter interface {
	// Allow counts one hit on key within window and reports whether the
	// count is still within limit.
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Lease is a held lock. Refresh extends it to ttl from now and fails once
// the lease has expired or been taken over.
type Lease interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// Locker hands out exclusive leases. ok is false when someone else holds key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}
