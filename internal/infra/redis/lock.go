// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/ports/adapter"
)

var _ adapter.Locker = (*RedisLocker)(nil)

// RedisLocker is a single-instance SET NX lock with token-checked release.
type RedisLocker struct {
	cli     *redis.Client
	retries uint64
	wait    time.Duration
}

// NewLocker builds a locker that retries a held key a few times before
// giving up with domain.ErrLockNotAcquired.
func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, retries: 5, wait: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(l.wait), l.retries), ctx)

	err := backoff.Retry(func() error {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrLockNotAcquired
		}
		return nil
	}, b)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			return "", domain.ErrLockNotAcquired
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases key only if it still holds token. Releasing an expired or
// foreign lock is a no-op.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
