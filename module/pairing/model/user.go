package model

import (
	"time"
)

// User is the durable user master record. Only pairing-relevant fields
// live here; profile/preference data belongs to its own collection.
// partner_id is symmetric: if A.partner_id == B.user_id then
// B.partner_id == A.user_id, except inside a committing transaction.
type User struct {
	UserID      string `bson:"user_id" json:"userId"` // immutable primary key
	DisplayName string `bson:"display_name" json:"displayName"`
	Email       string `bson:"email,omitempty" json:"email"`

	PartnerID   string `bson:"partner_id,omitempty" json:"partnerId"`
	PartnerName string `bson:"partner_name,omitempty" json:"partnerName"` // cached display name of the partner

	InviteCodes     []InviteCode `bson:"invite_codes" json:"inviteCodes"`
	PendingRequests []string     `bson:"pending_requests" json:"pendingRequests"` // partner request IDs addressed to this user

	CreateTime time.Time `bson:"create_time" json:"createTime"`
	UpdateTime time.Time `bson:"update_time" json:"updateTime"`
}

// HasPartner reports whether the record currently points at a partner.
func (u *User) HasPartner() bool {
	return u != nil && u.PartnerID != ""
}
