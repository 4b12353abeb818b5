package service

import (
	"context"
	"strings"
	"time"

	"PairLink/module/pairing/model"
	"PairLink/module/pairing/store"
	errs "PairLink/tools/errs"
	"PairLink/tools/ids"
)

const (
	searchMinLen = 2
	searchLimit  = 20
)

// RequestManager drives the targeted pairing path: search by name or
// email, send a short-lived request, accept or decline it.
type RequestManager struct {
	st store.Store
}

func NewRequestManager(st store.Store) *RequestManager {
	return &RequestManager{st: st}
}

// Search matches display name and email, case-insensitive substring,
// among users without a partner. Excludes the caller.
func (m *RequestManager) Search(ctx context.Context, userID, term string) ([]model.User, error) {
	if userID == "" {
		return nil, errs.ErrNotLoggedIn.Wrap()
	}
	term = strings.TrimSpace(term)
	if len(term) < searchMinLen {
		return nil, errs.ErrTermTooShort.Wrap()
	}
	return m.st.SearchUnpartnered(ctx, term, userID, searchLimit)
}

// Send creates a 5-minute request and appends its ID to the recipient's
// pending list in one transaction.
func (m *RequestManager) Send(ctx context.Context, senderID, recipientID string) (*model.PartnerRequest, error) {
	if senderID == "" {
		return nil, errs.ErrNotLoggedIn.Wrap()
	}
	if recipientID == senderID {
		return nil, errs.ErrSelfPairing.Wrap()
	}
	sender, err := m.st.GetUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, errs.ErrNotLoggedIn.WrapMsg("sender record missing", "senderID", senderID)
	}
	if sender.HasPartner() {
		return nil, errs.ErrAlreadyPartnered.Wrap()
	}

	now := time.Now()
	req := &model.PartnerRequest{
		RequestID:   ids.GenerateString(),
		SenderID:    senderID,
		SenderName:  sender.DisplayName,
		RecipientID: recipientID,
		Status:      model.RequestPending,
		CreateTime:  now,
		ExpireTime:  now.Add(model.PartnerRequestTTL),
	}
	if err := m.st.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Accept runs the same symmetric pairing transition as code redemption.
// Returns the sender's user ID so the coordinator can restart presence
// and notify.
func (m *RequestManager) Accept(ctx context.Context, userID, requestID string) (senderID string, err error) {
	if userID == "" {
		return "", errs.ErrNotLoggedIn.Wrap()
	}
	req, err := m.st.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req == nil {
		return "", errs.ErrRequestNotFound.Wrap()
	}
	if err := m.st.PairWithRequest(ctx, requestID, userID, time.Now()); err != nil {
		return "", err
	}
	return req.SenderID, nil
}

// Decline is idempotent: a missing or already-terminal request is a
// no-op, it never resurrects anything.
func (m *RequestManager) Decline(ctx context.Context, userID, requestID string) error {
	if userID == "" {
		return errs.ErrNotLoggedIn.Wrap()
	}
	return m.st.DeclineRequest(ctx, requestID, userID, time.Now())
}

// Pending resolves the caller's pending request IDs and filters to the
// currently actionable ones. Expired entries stay in storage; they are
// simply not surfaced.
func (m *RequestManager) Pending(ctx context.Context, userID string) ([]model.PartnerRequest, error) {
	if userID == "" {
		return nil, errs.ErrNotLoggedIn.Wrap()
	}
	u, err := m.st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || len(u.PendingRequests) == 0 {
		return nil, nil
	}
	all, err := m.st.GetRequests(ctx, u.PendingRequests)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := all[:0]
	for _, r := range all {
		if r.Actionable(now) {
			out = append(out, r)
		}
	}
	return out, nil
}
