package detection

import (
	"context"
	"time"

	"github.com/listinglab/clover/pkg/redis"
)

// fullScanLockKey names the distributed lock guarding full scans.
const fullScanLockKey = "full-scan"

// Lock is a held scan lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes full scans across service instances.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// ErrScanInProgress is surfaced when another full scan holds the lock.
var ErrScanInProgress = redis.ErrLockNotAcquired

type redisLocker struct {
	locker *redis.Locker
}

// NewRedisLocker adapts the Redis locker to the detection interface
func NewRedisLocker(locker *redis.Locker) Locker {
	return &redisLocker{locker: locker}
}

func (r *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := r.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
