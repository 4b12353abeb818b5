package store

import (
	"context"
	"time"

	"PairLink/module/pairing/model"
)

// Store is the durable side of the pairing engine. Implementations must
// make every method that touches both partner documents atomic; the
// symmetric partner_id invariant depends on it.
//
// Reads return (nil, nil) for missing records: absence is a first-class
// state, not an error.
type Store interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	UpsertUser(ctx context.Context, u *model.User) error

	// ReplaceInviteCodes writes the owner's full code list in one
	// document write (lazy GC of expired/used entries happens here).
	ReplaceInviteCodes(ctx context.Context, userID string, codes []model.InviteCode) error

	// FindRedeemableCode scans user documents for an unused, unexpired
	// entry matching code. Linear over active codes.
	FindRedeemableCode(ctx context.Context, code string, now time.Time) (*model.User, *model.InviteCode, error)

	// PairWithCode re-validates the code inside the transaction, marks
	// it used by redeemerID and links both users. A concurrent redeemer
	// of the same code aborts on the write conflict.
	PairWithCode(ctx context.Context, ownerID, redeemerID, code string, now time.Time) error

	SearchUnpartnered(ctx context.Context, term, excludeID string, limit int) ([]model.User, error)

	// CreateRequest stores the request and appends its ID to the
	// recipient's pending_requests in the same transaction.
	CreateRequest(ctx context.Context, req *model.PartnerRequest) error
	GetRequest(ctx context.Context, requestID string) (*model.PartnerRequest, error)
	GetRequests(ctx context.Context, requestIDs []string) ([]model.PartnerRequest, error)

	// PairWithRequest marks the request accepted, removes it from the
	// recipient's pending list and links both users, atomically.
	PairWithRequest(ctx context.Context, requestID, recipientID string, now time.Time) error

	// DeclineRequest is an idempotent no-op when the request is missing
	// or already terminal.
	DeclineRequest(ctx context.Context, requestID, recipientID string, now time.Time) error

	// Unpair nulls partner_id/partner_name on both sides. Each side is
	// only cleared while it still points at the expected counterpart,
	// so a racing re-pair is never clobbered.
	Unpair(ctx context.Context, userID, partnerID string) error

	// PartnerOf is the double-check read used by the presence
	// reconciler: partner pointer plus whether the record exists.
	PartnerOf(ctx context.Context, userID string) (partnerID string, exists bool, err error)
}
