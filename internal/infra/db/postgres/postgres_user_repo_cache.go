package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
	"video-monetization/internal/infra/metrics"
	red "video-monetization/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

type userRepoCacheDecorator struct {
	inner  repository.UserRepository
	cache  red.RedisClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.UserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &userRepoCacheDecorator{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func userKey(id string) string { return "user:id:" + id }

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, id string) (*model.User, error) {
	key := userKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.ObserveCacheLookup("user", true)
			return &user, nil
		}
	} else if !red.IsMiss(err) {
		metrics.IncCacheError("user", "get")
		d.logger.Warn().Err(err).Str("key", key).Msg("user cache read failed")
	}

	metrics.ObserveCacheLookup("user", false)
	user, err := d.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		bytes, _ := json.Marshal(user)
		if err := d.cache.Set(ctx, key, bytes, d.ttl); err != nil {
			metrics.IncCacheError("user", "set")
		}
	}
	return user, nil
}

// SaveRecipientCode writes through and drops the cached user so the next read
// sees the new code.
func (d *userRepoCacheDecorator) SaveRecipientCode(ctx context.Context, userID, provider, code string) error {
	if err := d.inner.SaveRecipientCode(ctx, userID, provider, code); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, userKey(userID)); err != nil {
		metrics.IncCacheError("user", "del")
		d.logger.Warn().Err(err).Str("user_id", userID).Msg("user cache invalidation failed")
	}
	return nil
}
