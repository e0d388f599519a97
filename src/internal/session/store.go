package session

import (
	"context"
	"strconv"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Store is the ephemeral per-user session set. Every mutation is expressed as
// an add/remove by value so concurrent connects, heartbeats, expirations and
// disconnects for the same user stay race-safe without a set-wide lock.
type Store interface {
	// RegisterSession adds the session to the user's set and writes a fresh
	// liveness marker. Reports whether this was the user's first active
	// session. Idempotent for a repeated (userId, sessionId).
	RegisterSession(ctx context.Context, userID, sessionID, deviceLabel string) (first bool, err error)

	// RenewHeartbeat extends the liveness marker's TTL. alive=false means the
	// marker is already gone and the caller should re-register.
	RenewHeartbeat(ctx context.Context, userID, sessionID string) (alive bool, err error)

	// RemoveSession deletes the marker and removes the session from the set.
	// Reports whether this removal left the user with zero sessions.
	RemoveSession(ctx context.Context, userID, sessionID string) (last bool, err error)

	// IsOnline reports whether the user's session set is non-empty.
	IsOnline(ctx context.Context, userID string) (bool, error)

	// ActiveSessionIDs returns the current session-id set.
	ActiveSessionIDs(ctx context.Context, userID string) ([]string, error)

	// ActiveSessions returns session metadata for device-list display.
	ActiveSessions(ctx context.Context, userID string) ([]*Session, error)

	// BatchIsOnline resolves liveness for many users in one pipelined
	// round trip.
	BatchIsOnline(ctx context.Context, userIDs []string) (map[string]bool, error)
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, cfg *config.PresenceConfig) Store {
	return &redisStore{
		client: client,
		ttl:    time.Duration(cfg.SessionTTLSeconds) * time.Second,
	}
}

func (s *redisStore) RegisterSession(ctx context.Context, userID, sessionID, deviceLabel string) (bool, error) {
	now := time.Now()

	pipe := s.client.TxPipeline()
	added := pipe.SAdd(ctx, sessionSetKey(userID), sessionID)
	card := pipe.SCard(ctx, sessionSetKey(userID))
	pipe.Set(ctx, connKey(userID, sessionID), "1", s.ttl)
	pipe.HSet(ctx, metaKey(userID, sessionID),
		"device_label", deviceLabel,
		"last_refreshed_at", now.UnixMilli())
	pipe.Expire(ctx, metaKey(userID, sessionID), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Error("Failed to register session")
		return false, models.ErrSessionCreating
	}

	first := added.Val() == 1 && card.Val() == 1
	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"device":     deviceLabel,
		"first":      first,
	}).Debug("Session registered")
	return first, nil
}

func (s *redisStore) RenewHeartbeat(ctx context.Context, userID, sessionID string) (bool, error) {
	alive, err := s.client.Expire(ctx, connKey(userID, sessionID), s.ttl).Result()
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Error("Failed to renew liveness marker")
		return false, models.ErrRedisExpire
	}
	if !alive {
		// Marker already expired; not an error, the caller re-registers.
		return false, nil
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, metaKey(userID, sessionID), "last_refreshed_at", time.Now().UnixMilli())
	pipe.Expire(ctx, metaKey(userID, sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to refresh session metadata")
	}
	return true, nil
}

func (s *redisStore) RemoveSession(ctx context.Context, userID, sessionID string) (bool, error) {
	pipe := s.client.TxPipeline()
	removed := pipe.SRem(ctx, sessionSetKey(userID), sessionID)
	pipe.Del(ctx, connKey(userID, sessionID))
	pipe.Del(ctx, metaKey(userID, sessionID))
	card := pipe.SCard(ctx, sessionSetKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Error("Failed to remove session")
		return false, models.ErrSessionRemoving
	}

	last := removed.Val() == 1 && card.Val() == 0
	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"last":       last,
	}).Debug("Session removed")
	return last, nil
}

func (s *redisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	count, err := s.client.SCard(ctx, sessionSetKey(userID)).Result()
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to count sessions")
		return false, models.ErrRedisGet
	}
	return count > 0, nil
}

func (s *redisStore) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, sessionSetKey(userID)).Result()
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list sessions")
		return nil, models.ErrRedisGet
	}
	return ids, nil
}

func (s *redisStore) ActiveSessions(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, metaKey(userID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to read session metadata")
		return nil, models.ErrRedisGet
	}

	sessions := make([]*Session, 0, len(ids))
	for i, id := range ids {
		meta := cmds[i].Val()
		sess := &Session{
			UserID:      userID,
			SessionID:   id,
			DeviceLabel: meta["device_label"],
		}
		if ms, ok := meta["last_refreshed_at"]; ok {
			sess.LastRefreshedAt = parseMillis(ms)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *redisStore) BatchIsOnline(ctx context.Context, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return map[string]bool{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, uid := range userIDs {
		cmds[i] = pipe.SCard(ctx, sessionSetKey(uid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).WithField("count", len(userIDs)).Error("Failed batch liveness read")
		return nil, models.ErrRedisGet
	}

	result := make(map[string]bool, len(userIDs))
	for i, uid := range userIDs {
		result[uid] = cmds[i].Val() > 0
	}
	return result, nil
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
