package broadcast

import (
	"context"
	"errors"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/events"
	"chathub-presence-svc/src/internal/models"
	"chathub-presence-svc/src/internal/presence"
	"chathub-presence-svc/src/internal/realtime"

	"github.com/sirupsen/logrus"
)

// Watchers is the fan-out slice of the subscription graph.
type Watchers interface {
	WatchersOf(ctx context.Context, targetID string) ([]string, error)
}

// StatusNotification is the payload pushed to watchers on a transition.
type StatusNotification struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Broadcaster consumes the status event bus, filters stale and duplicate
// transitions, applies the survivors to the durable presence store and pushes
// them to every watcher. Events for different users may be processed
// concurrently; per-user ordering comes from the bus partitioning.
type Broadcaster struct {
	store     presence.Repository
	watchers  Watchers
	channel   realtime.Channel
	staleness time.Duration
	maxSkew   time.Duration
	feedTopic string
}

func NewBroadcaster(store presence.Repository, watchers Watchers, channel realtime.Channel, cfg *config.PresenceConfig) *Broadcaster {
	return &Broadcaster{
		store:     store,
		watchers:  watchers,
		channel:   channel,
		staleness: time.Duration(cfg.StalenessWindowMinutes) * time.Minute,
		maxSkew:   time.Duration(cfg.MaxClockSkewMinutes) * time.Minute,
		feedTopic: cfg.GlobalFeedTopic,
	}
}

// Handle implements events.Handler. A nil return acknowledges the event; an
// error leaves it for redelivery.
func (b *Broadcaster) Handle(ctx context.Context, evt events.PresenceEvent) error {
	now := time.Now()

	// Events outside the plausibility window are dropped without side
	// effects: too old to matter, or from a clock too far ahead to trust.
	if now.Sub(evt.EmittedAt) > b.staleness {
		logrus.WithFields(logrus.Fields{
			"user_id":    evt.UserID,
			"emitted_at": evt.EmittedAt,
		}).Warn("Dropping stale presence event")
		return nil
	}
	if evt.EmittedAt.After(now.Add(b.maxSkew)) {
		logrus.WithFields(logrus.Fields{
			"user_id":    evt.UserID,
			"emitted_at": evt.EmittedAt,
		}).Warn("Dropping presence event from the future, clock skew suspected")
		return nil
	}

	current, err := b.store.Get(ctx, evt.UserID)
	if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
		return err
	}
	if current != nil && current.IsOnline == evt.Online {
		logrus.WithFields(logrus.Fields{
			"user_id": evt.UserID,
			"online":  evt.Online,
		}).Debug("Dropping no-op presence transition")
		return nil
	}

	if err := b.store.Apply(ctx, evt.UserID, evt.Online, evt.EmittedAt); err != nil {
		return err
	}

	return b.fanOut(ctx, evt)
}

func (b *Broadcaster) fanOut(ctx context.Context, evt events.PresenceEvent) error {
	watchers, err := b.watchers.WatchersOf(ctx, evt.UserID)
	if err != nil {
		return err
	}

	note := StatusNotification{
		UserID: evt.UserID,
		Online: evt.Online,
		At:     evt.EmittedAt,
	}

	var pushErr error
	for _, watcher := range watchers {
		if err := b.channel.PushToUser(watcher, note); err != nil && pushErr == nil {
			pushErr = err
		}
	}
	if b.feedTopic != "" {
		if err := b.channel.PushToTopic(b.feedTopic, note); err != nil && pushErr == nil {
			pushErr = err
		}
	}
	if pushErr != nil {
		return pushErr
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  evt.UserID,
		"online":   evt.Online,
		"watchers": len(watchers),
	}).Info("Presence transition broadcast")
	return nil
}
