package session

import (
	"strings"
	"time"
)

// Session represents one live connection for one user. The authoritative
// record is the Redis liveness marker; this struct is what diagnostics and
// device-list displays see.
type Session struct {
	UserID          string    `json:"userId"`
	SessionID       string    `json:"sessionId"`
	DeviceLabel     string    `json:"deviceLabel"`
	LastRefreshedAt time.Time `json:"lastRefreshedAt"`
}

const (
	sessionSetPrefix = "presence:sessions:"
	connKeyPrefix    = "presence:conn:"
	metaKeyPrefix    = "presence:meta:"
)

func sessionSetKey(userID string) string {
	return sessionSetPrefix + userID
}

func connKey(userID, sessionID string) string {
	return connKeyPrefix + userID + ":" + sessionID
}

func metaKey(userID, sessionID string) string {
	return metaKeyPrefix + userID + ":" + sessionID
}

// ParseConnKey extracts (userId, sessionId) from a liveness marker key.
// Session ids are opaque and colon-free, so the last separator wins.
func ParseConnKey(key string) (userID, sessionID string, ok bool) {
	if !strings.HasPrefix(key, connKeyPrefix) {
		return "", "", false
	}
	rest := key[len(connKeyPrefix):]
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
