package model

import (
	"time"
)

const PartnerRequestTTL = 5 * time.Minute

// Partner request statuses. accepted and declined are terminal; an
// expired-but-pending request is filtered at read time, never purged.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// PartnerRequest is a targeted pairing proposal: search -> send ->
// accept/decline. Its ID is also appended to the recipient's
// pending_requests list in the same transaction that creates it.
type PartnerRequest struct {
	RequestID   string `bson:"_id" json:"requestId"`
	SenderID    string `bson:"sender_id" json:"senderId"`
	SenderName  string `bson:"sender_name" json:"senderName"`
	RecipientID string `bson:"recipient_id" json:"recipientId"`

	Status string `bson:"status" json:"status"`

	CreateTime time.Time `bson:"create_time" json:"createTime"`
	ExpireTime time.Time `bson:"expire_time" json:"expireTime"`
	HandleTime time.Time `bson:"handle_time,omitempty" json:"handleTime,omitempty"`
}

// Expired reports whether the request is past its TTL.
func (r *PartnerRequest) Expired(now time.Time) bool {
	return now.After(r.ExpireTime)
}

// Actionable means the request can still be accepted.
func (r *PartnerRequest) Actionable(now time.Time) bool {
	return r.Status == RequestPending && !r.Expired(now)
}
