package presence

import (
	"time"
)

const StatusOnline = "online"

// ConnectionRecord is the per-session liveness marker. It lives under a
// TTL lease refreshed by heartbeat and disappears when the session
// vanishes without a graceful teardown. Reconstructed every session.
type ConnectionRecord struct {
	UserID       string    `json:"userId"`
	PartnerID    string    `json:"partnerId,omitempty"`
	ConnectionID string    `json:"connectionId"` // disambiguates overlapping sessions
	Status       string    `json:"status"`
	LastActive   time.Time `json:"lastActive"`
}

// PresenceRecord is the durable-ish online/offline marker. It is never
// deleted on disconnect; only is_online flips false, preserving the
// last-seen timestamp.
type PresenceRecord struct {
	UserID       string    `json:"userId"`
	IsOnline     bool      `json:"isOnline"`
	LastOnline   time.Time `json:"lastOnline"`
	ConnectionID string    `json:"connectionId"`
}

// DisconnectHook is the pre-registered write applied when a session's
// lease lapses without explicit teardown: the connection record is
// dropped (the lease itself handles that) and the presence record is
// flipped offline with a last-seen stamp.
type DisconnectHook struct {
	UserID       string    `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	RegisteredAt time.Time `json:"registeredAt"`
}
