package session

import (
	"context"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

// Heartbeats is the policy layer over Store.RenewHeartbeat. It owns no state
// beyond the configured ping interval, which must stay strictly shorter than
// the session TTL so a client survives one or two missed pings.
type Heartbeats struct {
	store    Store
	interval time.Duration
}

func NewHeartbeats(store Store, cfg *config.PresenceConfig) *Heartbeats {
	interval := time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second
	ttl := time.Duration(cfg.SessionTTLSeconds) * time.Second
	if interval >= ttl {
		logrus.WithFields(logrus.Fields{
			"interval": interval,
			"ttl":      ttl,
		}).Warn("Heartbeat interval is not shorter than session TTL, clients will flap offline")
	}
	return &Heartbeats{store: store, interval: interval}
}

// Interval is the ping cadence clients are expected to follow.
func (h *Heartbeats) Interval() time.Duration {
	return h.interval
}

// Renew extends the session's liveness marker. Returns ErrSessionLost when
// the marker already expired; the caller should re-register, not retry.
func (h *Heartbeats) Renew(ctx context.Context, userID, sessionID string) error {
	alive, err := h.store.RenewHeartbeat(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !alive {
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Debug("Heartbeat for expired session, client must re-register")
		return models.ErrSessionLost
	}
	return nil
}
