package expiry

import (
	"context"
	"fmt"

	"chathub-presence-svc/src/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SessionRemover is the teardown slice of the session store.
type SessionRemover interface {
	RemoveSession(ctx context.Context, userID, sessionID string) (last bool, err error)
}

// Finalizer hands the last-session case to the offline debounce coordinator.
type Finalizer interface {
	TryFinalizeOffline(ctx context.Context, userID string) error
}

// Reactor consumes Redis key-expiration notifications and tears down the
// sessions whose liveness markers expired. An expired marker is the only
// signal of an ungraceful disconnect, so each notification runs the
// EXPIRED -> SESSION_REMOVED -> {LAST | NOT_LAST} path exactly once, with no
// retries: the marker is gone regardless of what happens downstream.
type Reactor struct {
	client    *redis.Client
	db        int
	sessions  SessionRemover
	finalizer Finalizer
}

func NewReactor(client *redis.Client, db int, sessions SessionRemover, finalizer Finalizer) *Reactor {
	return &Reactor{
		client:    client,
		db:        db,
		sessions:  sessions,
		finalizer: finalizer,
	}
}

// Run subscribes to the expired-key event channel until the context is
// canceled. Keyspace notifications are enabled best-effort; managed Redis
// deployments often preconfigure them and refuse CONFIG SET.
func (r *Reactor) Run(ctx context.Context) error {
	if err := r.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		logrus.WithError(err).Warn("Could not enable keyspace notifications, assuming server config provides them")
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", r.db)
	pubsub := r.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	logrus.WithField("channel", channel).Info("Expiration reactor listening for expired liveness markers")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Expiration reactor stopped")
			return nil
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return nil
			}
			r.handleExpiredKey(ctx, msg.Payload)
		}
	}
}

func (r *Reactor) handleExpiredKey(ctx context.Context, key string) {
	userID, sessionID, ok := session.ParseConnKey(key)
	if !ok {
		// Not a liveness marker (metadata hashes and lock keys expire too).
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
	}).Info("Liveness marker expired")

	// The set may already reflect removal through a racing clean disconnect;
	// RemoveSession is idempotent either way.
	last, err := r.sessions.RemoveSession(ctx, userID, sessionID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Error("Failed to tear down expired session")
		return
	}
	if !last {
		return
	}

	if err := r.finalizer.TryFinalizeOffline(ctx, userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Offline finalization failed after expiry")
	}
}
