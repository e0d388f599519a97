package lifecycle

import (
	"context"
	"strings"

	"chathub-presence-svc/src/internal/events"
	"chathub-presence-svc/src/internal/models"
	"chathub-presence-svc/src/internal/session"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Finalizer is the offline debounce entry point for clean disconnects.
type Finalizer interface {
	TryFinalizeOffline(ctx context.Context, userID string) error
}

// Service implements the connection lifecycle hooks the transport gateway
// calls. It owns the first-session online publish and routes the last-session
// case through the debounce coordinator, the same path crash expiry takes.
type Service interface {
	// OnConnect registers the session and publishes the online transition if
	// it is the user's first. Generates a session id when the gateway did not
	// supply one; supplied ids must not contain the key separator and are
	// rejected with ErrSessionIDInvalid otherwise.
	OnConnect(ctx context.Context, userID, sessionID, deviceLabel string) (string, error)

	// OnHeartbeat renews the session's liveness marker. Returns
	// models.ErrSessionLost when the marker already expired.
	OnHeartbeat(ctx context.Context, userID, sessionID string) error

	// OnDisconnect removes the session and, when it was the last one, hands
	// off to the offline debounce coordinator.
	OnDisconnect(ctx context.Context, userID, sessionID string) error
}

type service struct {
	store      session.Store
	heartbeats *session.Heartbeats
	publisher  events.Publisher
	finalizer  Finalizer
}

func NewService(store session.Store, heartbeats *session.Heartbeats, publisher events.Publisher, finalizer Finalizer) Service {
	return &service{
		store:      store,
		heartbeats: heartbeats,
		publisher:  publisher,
		finalizer:  finalizer,
	}
}

func (s *service) OnConnect(ctx context.Context, userID, sessionID, deviceLabel string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	// The id becomes part of the liveness-marker key, where ":" separates
	// the user id from the session id. An id carrying the separator would
	// expire under a misparsed identity and never tear down.
	if strings.ContainsRune(sessionID, ':') {
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Warn("Rejecting session id with key separator")
		return "", models.ErrSessionIDInvalid
	}

	first, err := s.store.RegisterSession(ctx, userID, sessionID, deviceLabel)
	if err != nil {
		return "", err
	}

	if first {
		// The connection is live regardless of the bus; a lost online event
		// is logged and re-derivable from the session store, so it must not
		// fail the connect (a retried connect would no longer be "first").
		if err := s.publisher.PublishStatus(ctx, userID, true); err != nil {
			if err := s.publisher.PublishStatus(ctx, userID, true); err != nil {
				logrus.WithError(err).WithField("user_id", userID).Error("Online transition lost, presence store will lag")
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"device":     deviceLabel,
		"first":      first,
	}).Info("Connection registered")
	return sessionID, nil
}

func (s *service) OnHeartbeat(ctx context.Context, userID, sessionID string) error {
	return s.heartbeats.Renew(ctx, userID, sessionID)
}

func (s *service) OnDisconnect(ctx context.Context, userID, sessionID string) error {
	last, err := s.store.RemoveSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"last":       last,
	}).Info("Connection closed")

	if !last {
		return nil
	}
	return s.finalizer.TryFinalizeOffline(ctx, userID)
}
