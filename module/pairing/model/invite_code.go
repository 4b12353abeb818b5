package model

import (
	"time"
)

// Invite code lifetime and the grace applied on redemption so a client
// with a slightly slow clock isn't rejected at the boundary.
const (
	InviteCodeTTL   = 10 * time.Minute
	InviteCodeGrace = 1 * time.Minute
)

// InviteCode is one entry in a user's invite_codes list. It becomes
// used=true exactly once, inside the same transaction that links the
// two partners. Expired and used entries are filtered lazily on the
// next generation, never actively deleted.
type InviteCode struct {
	Code      string    `bson:"code" json:"code"` // 6-char uppercase alphanumeric
	CreatedBy string    `bson:"created_by" json:"createdBy"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`

	Used   bool      `bson:"used" json:"used"`
	UsedBy string    `bson:"used_by,omitempty" json:"usedBy,omitempty"`
	UsedAt time.Time `bson:"used_at,omitempty" json:"usedAt,omitempty"`
}

// Expired reports expiry without grace; used when pruning a code list.
func (c *InviteCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Redeemable applies the clock-skew grace on top of used/expiry checks.
func (c *InviteCode) Redeemable(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt.Add(InviteCodeGrace))
}
