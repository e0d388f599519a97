package presence

import "time"

// UserPresenceState is the durable last-known state per user. The live truth
// is always the session store's session count; this copy may lag briefly and
// is eventually consistent.
type UserPresenceState struct {
	UserID       string     `bson:"user_id" json:"userId"`
	IsOnline     bool       `bson:"is_online" json:"isOnline"`
	LastActiveAt *time.Time `bson:"last_active_at,omitempty" json:"lastActiveAt,omitempty"`
}
