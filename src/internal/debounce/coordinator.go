package debounce

import (
	"context"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/events"

	"github.com/sirupsen/logrus"
)

const (
	offlineLockPrefix   = "presence:offline:lock:"
	offlineMarkerPrefix = "presence:offline:mark:"
)

// SessionCounter is the slice of the session store the coordinator needs.
type SessionCounter interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// Coordinator guarantees that when several sessions of one user expire
// near-simultaneously across instances, exactly one offline event gets
// published. Two layers guard the transition: a per-user mutex for the
// finalization itself, and a short debounce marker that survives lock
// release, because lock release and publish are not atomic across instances.
type Coordinator struct {
	locks       Locks
	sessions    SessionCounter
	publisher   events.Publisher
	lockTTL     time.Duration
	debounceTTL time.Duration
}

func NewCoordinator(locks Locks, sessions SessionCounter, publisher events.Publisher, cfg *config.PresenceConfig) *Coordinator {
	return &Coordinator{
		locks:       locks,
		sessions:    sessions,
		publisher:   publisher,
		lockTTL:     time.Duration(cfg.OfflineLockTTLSeconds) * time.Second,
		debounceTTL: time.Duration(cfg.DebounceTTLSeconds) * time.Second,
	}
}

// TryFinalizeOffline attempts to declare the user offline. Losing the lock,
// finding the user reconnected, or hitting a fresh debounce marker are all
// quiet no-ops; only infrastructure failures surface as errors.
func (c *Coordinator) TryFinalizeOffline(ctx context.Context, userID string) error {
	lockKey := offlineLockPrefix + userID

	acquired, err := c.locks.TryAcquire(ctx, lockKey, c.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		logrus.WithField("user_id", userID).Debug("Offline finalization lock held elsewhere, skipping")
		return nil
	}
	defer func() {
		if err := c.locks.Release(ctx, lockKey); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("Failed to release offline lock, TTL will reclaim it")
		}
	}()

	// The user may have reconnected between the expiry and lock acquisition.
	online, err := c.sessions.IsOnline(ctx, userID)
	if err != nil {
		// A failed read must never turn into a false offline.
		return err
	}
	if online {
		logrus.WithField("user_id", userID).Debug("User reconnected during debounce, staying online")
		return nil
	}

	marked, err := c.locks.Marked(ctx, offlineMarkerPrefix+userID)
	if err != nil {
		return err
	}
	if marked {
		logrus.WithField("user_id", userID).Debug("Offline already published within debounce window")
		return nil
	}

	if err := c.publisher.PublishStatus(ctx, userID, false); err != nil {
		return err
	}
	if err := c.locks.Mark(ctx, offlineMarkerPrefix+userID, c.debounceTTL); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to set debounce marker after publish")
	}

	logrus.WithField("user_id", userID).Info("User finalized offline")
	return nil
}
