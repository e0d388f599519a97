package debounce

import (
	"context"
	"time"

	"chathub-presence-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Locks is the short-lived exclusive lock and marker surface used for
// offline finalization. Everything here is TTL-bound and self-healing; a
// crashed holder never wedges a user.
type Locks interface {
	// TryAcquire takes the lock if nobody holds it. false means another
	// instance is already finalizing.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops the lock. Safe when the lock already expired.
	Release(ctx context.Context, key string) error

	// Marked reports whether a marker is still live.
	Marked(ctx context.Context, key string) (bool, error)

	// Mark sets a marker with the given TTL.
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

type redisLocks struct {
	client *redis.Client
}

func NewLocks(client *redis.Client) Locks {
	return &redisLocks{client: client}
}

func (l *redisLocks) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to acquire lock")
		return false, models.ErrRedisSet
	}
	return ok, nil
}

func (l *redisLocks) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to release lock")
		return models.ErrRedisDelete
	}
	return nil
}

func (l *redisLocks) Marked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to check debounce marker")
		return false, models.ErrRedisGet
	}
	return n > 0, nil
}

func (l *redisLocks) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if err := l.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to set debounce marker")
		return models.ErrRedisSet
	}
	return nil
}
