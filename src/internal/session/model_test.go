package session

import "testing"

func TestParseConnKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		userID    string
		sessionID string
		ok        bool
	}{
		{
			name:      "valid marker key",
			key:       "presence:conn:user-1:sess-abc",
			userID:    "user-1",
			sessionID: "sess-abc",
			ok:        true,
		},
		{
			name:      "uuid session id",
			key:       "presence:conn:42:6b1f9d04-8f2e-41c7-9c60-0f6f6a3f1b11",
			userID:    "42",
			sessionID: "6b1f9d04-8f2e-41c7-9c60-0f6f6a3f1b11",
			ok:        true,
		},
		{
			name: "metadata key is not a marker",
			key:  "presence:meta:user-1:sess-abc",
			ok:   false,
		},
		{
			name: "lock key is not a marker",
			key:  "presence:offline:lock:user-1",
			ok:   false,
		},
		{
			name: "missing session id",
			key:  "presence:conn:user-1",
			ok:   false,
		},
		{
			name: "trailing separator",
			key:  "presence:conn:user-1:",
			ok:   false,
		},
		{
			name: "empty key",
			key:  "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, sessionID, ok := ParseConnKey(tt.key)
			if ok != tt.ok {
				t.Fatalf("ParseConnKey(%q) ok = %v, want %v", tt.key, ok, tt.ok)
			}
			if !ok {
				return
			}
			if userID != tt.userID || sessionID != tt.sessionID {
				t.Errorf("ParseConnKey(%q) = (%q, %q), want (%q, %q)",
					tt.key, userID, sessionID, tt.userID, tt.sessionID)
			}
		})
	}
}

func TestConnKeyRoundTrip(t *testing.T) {
	key := connKey("u-9", "s-1")
	userID, sessionID, ok := ParseConnKey(key)
	if !ok {
		t.Fatalf("ParseConnKey(%q) failed", key)
	}
	if userID != "u-9" || sessionID != "s-1" {
		t.Errorf("round trip = (%q, %q), want (u-9, s-1)", userID, sessionID)
	}
}

// The last-colon split leans on session ids being colon-free, which the
// connect path enforces. User ids may carry colons and still survive the
// round trip.
func TestConnKeyRoundTripUserIDWithColon(t *testing.T) {
	key := connKey("tenant:42", "s-1")
	userID, sessionID, ok := ParseConnKey(key)
	if !ok {
		t.Fatalf("ParseConnKey(%q) failed", key)
	}
	if userID != "tenant:42" || sessionID != "s-1" {
		t.Errorf("round trip = (%q, %q), want (tenant:42, s-1)", userID, sessionID)
	}
}
