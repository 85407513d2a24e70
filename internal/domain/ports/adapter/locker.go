package adapter

import (
	"context"
	"time"
)

// Locker is a distributed mutex keyed by string. TryLock returns a token that
// must be passed to Unlock; it fails with domain.ErrLockNotAcquired when the
// key stays held past the retry budget.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
