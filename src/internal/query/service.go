package query

import (
	"context"
	"time"

	"chathub-presence-svc/src/internal/presence"
	"chathub-presence-svc/src/internal/session"
	"chathub-presence-svc/src/internal/settings"

	"github.com/sirupsen/logrus"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)

// PresenceView is the merged answer for one user. Status degrades to
// "unknown" on backend failure, never to a false "offline".
type PresenceView struct {
	UserID       string     `json:"userId"`
	Status       string     `json:"status"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
}

// Service is the public read API: live liveness from the session store,
// durable last-active data from the presence store, and the privacy flag
// forcing hidden users to read as offline.
type Service interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
	BatchPresence(ctx context.Context, userIDs []string) ([]*PresenceView, error)
	ActiveSessions(ctx context.Context, userID string) ([]*session.Session, error)
}

type service struct {
	sessions session.Store
	store    presence.Repository
	privacy  settings.Repository
}

func NewService(sessions session.Store, store presence.Repository, privacy settings.Repository) Service {
	return &service{
		sessions: sessions,
		store:    store,
		privacy:  privacy,
	}
}

// IsOnline answers from the session store's live truth, not the possibly
// lagging presence store. Hidden users always read as offline.
func (s *service) IsOnline(ctx context.Context, userID string) (bool, error) {
	online, err := s.sessions.IsOnline(ctx, userID)
	if err != nil {
		return false, err
	}
	if !online {
		return false, nil
	}

	hidden, err := s.privacy.Hidden(ctx, userID)
	if err != nil {
		return false, err
	}
	return !hidden, nil
}

// BatchPresence merges one pipelined session-store read, one presence-store
// $in read and one privacy $in read; never N round trips. A failing backend
// degrades only the affected field: dead liveness means every status is
// unknown, dead privacy hides online users behind unknown, dead presence
// store just drops lastActiveAt.
func (s *service) BatchPresence(ctx context.Context, userIDs []string) ([]*PresenceView, error) {
	if len(userIDs) == 0 {
		return []*PresenceView{}, nil
	}

	liveness, livenessErr := s.sessions.BatchIsOnline(ctx, userIDs)
	if livenessErr != nil {
		logrus.WithError(livenessErr).Warn("Batch liveness read failed, reporting unknown")
	}

	states, statesErr := s.store.BatchGet(ctx, userIDs)
	if statesErr != nil {
		logrus.WithError(statesErr).Warn("Batch presence-store read failed, omitting last-active data")
	}

	hidden, hiddenErr := s.privacy.BatchHidden(ctx, userIDs)
	if hiddenErr != nil {
		logrus.WithError(hiddenErr).Warn("Batch privacy read failed, masking online users as unknown")
	}

	views := make([]*PresenceView, 0, len(userIDs))
	for _, uid := range userIDs {
		view := &PresenceView{UserID: uid, Status: StatusUnknown}

		if livenessErr == nil {
			online := liveness[uid]
			switch {
			case !online:
				view.Status = StatusOffline
			case hiddenErr != nil:
				// Online but unverifiable privacy: do not guess.
				view.Status = StatusUnknown
			case hidden[uid]:
				view.Status = StatusOffline
			default:
				view.Status = StatusOnline
			}
		}

		if statesErr == nil && hiddenErr == nil && view.Status == StatusOffline && !hidden[uid] {
			if state, ok := states[uid]; ok {
				view.LastActiveAt = state.LastActiveAt
			}
		}

		views = append(views, view)
	}

	return views, nil
}

func (s *service) ActiveSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	return s.sessions.ActiveSessions(ctx, userID)
}
