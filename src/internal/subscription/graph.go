package subscription

import (
	"context"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	subsKeyPrefix     = "presence:subs:"
	watchersKeyPrefix = "presence:watchers:"
)

// Graph is the bidirectional ephemeral index of who watches whom. Every edge
// lives in both the subscriber's subscription set and the target's watcher
// set; both indexes expire together and heal through the callers' periodic
// full re-subscription, so stale edges are never an error.
type Graph interface {
	// Subscribe idempotently adds edges in both directions and refreshes the
	// TTL on every touched index.
	Subscribe(ctx context.Context, subscriberID string, targetIDs []string) error

	// Unsubscribe idempotently removes the edges from both directions.
	Unsubscribe(ctx context.Context, subscriberID string, targetIDs []string) error

	// WatchersOf returns the current watcher set of a target.
	WatchersOf(ctx context.Context, targetID string) ([]string, error)

	// SubscriptionsOf returns everyone the subscriber currently watches.
	SubscriptionsOf(ctx context.Context, subscriberID string) ([]string, error)
}

type redisGraph struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGraph(client *redis.Client, cfg *config.PresenceConfig) Graph {
	return &redisGraph{
		client: client,
		ttl:    time.Duration(cfg.SubscriptionTTLHours) * time.Hour,
	}
}

func (g *redisGraph) Subscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(targetIDs))
	for i, id := range targetIDs {
		members[i] = id
	}

	pipe := g.client.TxPipeline()
	pipe.SAdd(ctx, subsKeyPrefix+subscriberID, members...)
	pipe.Expire(ctx, subsKeyPrefix+subscriberID, g.ttl)
	for _, target := range targetIDs {
		pipe.SAdd(ctx, watchersKeyPrefix+target, subscriberID)
		pipe.Expire(ctx, watchersKeyPrefix+target, g.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"subscriber": subscriberID,
			"targets":    len(targetIDs),
		}).Error("Failed to add subscription edges")
		return models.ErrSubscriptionUpdate
	}

	logrus.WithFields(logrus.Fields{
		"subscriber": subscriberID,
		"targets":    len(targetIDs),
	}).Debug("Subscriptions refreshed")
	return nil
}

func (g *redisGraph) Unsubscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(targetIDs))
	for i, id := range targetIDs {
		members[i] = id
	}

	pipe := g.client.TxPipeline()
	pipe.SRem(ctx, subsKeyPrefix+subscriberID, members...)
	for _, target := range targetIDs {
		pipe.SRem(ctx, watchersKeyPrefix+target, subscriberID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"subscriber": subscriberID,
			"targets":    len(targetIDs),
		}).Error("Failed to remove subscription edges")
		return models.ErrSubscriptionUpdate
	}

	return nil
}

func (g *redisGraph) WatchersOf(ctx context.Context, targetID string) ([]string, error) {
	watchers, err := g.client.SMembers(ctx, watchersKeyPrefix+targetID).Result()
	if err != nil {
		logrus.WithError(err).WithField("target", targetID).Error("Failed to read watcher set")
		return nil, models.ErrRedisGet
	}
	return watchers, nil
}

func (g *redisGraph) SubscriptionsOf(ctx context.Context, subscriberID string) ([]string, error) {
	targets, err := g.client.SMembers(ctx, subsKeyPrefix+subscriberID).Result()
	if err != nil {
		logrus.WithError(err).WithField("subscriber", subscriberID).Error("Failed to read subscription set")
		return nil, models.ErrRedisGet
	}
	return targets, nil
}
