package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"PairLink/module/pairing/model"
	errs "PairLink/tools/errs"
)

// MemoryStore keeps everything under one mutex, which trivially gives
// the same all-or-nothing semantics the mongo transactions provide.
// Used by tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	requests map[string]*model.PartnerRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*model.User),
		requests: make(map[string]*model.PartnerRequest),
	}
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	c.InviteCodes = append([]model.InviteCode(nil), u.InviteCodes...)
	c.PendingRequests = append([]string(nil), u.PendingRequests...)
	return &c
}

func cloneRequest(r *model.PartnerRequest) *model.PartnerRequest {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.users[userID]), nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneUser(u)
	c.UpdateTime = time.Now()
	if c.CreateTime.IsZero() {
		c.CreateTime = c.UpdateTime
	}
	s.users[c.UserID] = c
	return nil
}

func (s *MemoryStore) ReplaceInviteCodes(_ context.Context, userID string, codes []model.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errs.ErrNotLoggedIn.WrapMsg("user record missing", "userID", userID)
	}
	u.InviteCodes = append([]model.InviteCode(nil), codes...)
	u.UpdateTime = time.Now()
	return nil
}

func (s *MemoryStore) FindRedeemableCode(_ context.Context, code string, now time.Time) (*model.User, *model.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		for i := range u.InviteCodes {
			c := &u.InviteCodes[i]
			if c.Code == code && c.Redeemable(now) {
				return cloneUser(u), &model.InviteCode{
					Code: c.Code, CreatedBy: c.CreatedBy,
					CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt,
				}, nil
			}
		}
	}
	return nil, nil, nil
}

func (s *MemoryStore) PairWithCode(_ context.Context, ownerID, redeemerID, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[ownerID]
	if !ok {
		return errs.ErrInvalidOrExpiredCode.WrapMsg("code owner vanished")
	}
	redeemer, ok := s.users[redeemerID]
	if !ok {
		return errs.ErrNotLoggedIn.WrapMsg("redeemer record missing")
	}
	if owner.HasPartner() || redeemer.HasPartner() {
		return errs.ErrAlreadyPartnered.Wrap()
	}

	var entry *model.InviteCode
	for i := range owner.InviteCodes {
		c := &owner.InviteCodes[i]
		if c.Code == code && c.Redeemable(now) {
			entry = c
			break
		}
	}
	if entry == nil {
		return errs.ErrInvalidOrExpiredCode.Wrap()
	}

	entry.Used = true
	entry.UsedBy = redeemerID
	entry.UsedAt = now
	owner.PartnerID = redeemerID
	owner.PartnerName = redeemer.DisplayName
	owner.UpdateTime = now
	redeemer.PartnerID = ownerID
	redeemer.PartnerName = owner.DisplayName
	redeemer.UpdateTime = now
	return nil
}

func (s *MemoryStore) SearchUnpartnered(_ context.Context, term, excludeID string, limit int) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(term)
	var out []model.User
	for _, u := range s.users {
		if u.UserID == excludeID || u.HasPartner() {
			continue
		}
		if strings.Contains(strings.ToLower(u.DisplayName), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateRequest(_ context.Context, req *model.PartnerRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipient, ok := s.users[req.RecipientID]
	if !ok {
		return errs.ErrRequestNotFound.WrapMsg("recipient missing", "recipientID", req.RecipientID)
	}
	s.requests[req.RequestID] = cloneRequest(req)
	for _, id := range recipient.PendingRequests {
		if id == req.RequestID {
			return nil
		}
	}
	recipient.PendingRequests = append(recipient.PendingRequests, req.RequestID)
	recipient.UpdateTime = req.CreateTime
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, requestID string) (*model.PartnerRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRequest(s.requests[requestID]), nil
}

func (s *MemoryStore) GetRequests(_ context.Context, requestIDs []string) ([]model.PartnerRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PartnerRequest
	for _, id := range requestIDs {
		if r, ok := s.requests[id]; ok {
			out = append(out, *cloneRequest(r))
		}
	}
	return out, nil
}

func (s *MemoryStore) PairWithRequest(_ context.Context, requestID, recipientID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return errs.ErrRequestNotFound.Wrap()
	}
	if req.RecipientID != recipientID {
		return errs.ErrNotAuthorized.Wrap()
	}
	if req.Status != model.RequestPending {
		return errs.ErrRequestNoLongerPending.Wrap()
	}
	if req.Expired(now) {
		return errs.ErrRequestExpired.Wrap()
	}

	sender, ok := s.users[req.SenderID]
	if !ok {
		return errs.ErrRequestNoLongerPending.WrapMsg("sender vanished")
	}
	recipient := s.users[recipientID]
	if sender.HasPartner() || recipient.HasPartner() {
		return errs.ErrAlreadyPartnered.Wrap()
	}

	req.Status = model.RequestAccepted
	req.HandleTime = now
	recipient.PendingRequests = removeString(recipient.PendingRequests, requestID)
	recipient.PartnerID = sender.UserID
	recipient.PartnerName = sender.DisplayName
	recipient.UpdateTime = now
	sender.PartnerID = recipient.UserID
	sender.PartnerName = recipient.DisplayName
	sender.UpdateTime = now
	return nil
}

func (s *MemoryStore) DeclineRequest(_ context.Context, requestID, recipientID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req, ok := s.requests[requestID]; ok && req.Status == model.RequestPending {
		req.Status = model.RequestDeclined
		req.HandleTime = now
	}
	if recipient, ok := s.users[recipientID]; ok {
		recipient.PendingRequests = removeString(recipient.PendingRequests, requestID)
	}
	return nil
}

func (s *MemoryStore) Unpair(_ context.Context, userID, partnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if u, ok := s.users[userID]; ok && u.PartnerID == partnerID {
		u.PartnerID = ""
		u.PartnerName = ""
		u.UpdateTime = now
	}
	if p, ok := s.users[partnerID]; ok && p.PartnerID == userID {
		p.PartnerID = ""
		p.PartnerName = ""
		p.UpdateTime = now
	}
	return nil
}

func (s *MemoryStore) PartnerOf(_ context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", false, nil
	}
	return u.PartnerID, true, nil
}

func removeString(in []string, v string) []string {
	out := in[:0]
	for _, s := range in {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
