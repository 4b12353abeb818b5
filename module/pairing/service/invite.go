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

// InviteManager issues, validates and redeems the time-boxed single-use
// invite codes.
type InviteManager struct {
	st store.Store
}

func NewInviteManager(st store.Store) *InviteManager {
	return &InviteManager{st: st}
}

// Generate creates a fresh 10-minute code for the caller. Expired and
// used entries are dropped from the list in the same write; nothing
// actively deletes them otherwise.
func (m *InviteManager) Generate(ctx context.Context, userID string) (*model.InviteCode, error) {
	if userID == "" {
		return nil, errs.ErrNotLoggedIn.Wrap()
	}
	u, err := m.st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrNotLoggedIn.WrapMsg("user record missing", "userID", userID)
	}
	if u.HasPartner() {
		return nil, errs.ErrAlreadyPartnered.Wrap()
	}

	code, err := ids.GenerateInviteCode()
	if err != nil {
		return nil, errs.WrapMsg(err, "invite code generation failed")
	}

	now := time.Now()
	entry := model.InviteCode{
		Code:      code,
		CreatedBy: userID,
		CreatedAt: now,
		ExpiresAt: now.Add(model.InviteCodeTTL),
	}

	kept := make([]model.InviteCode, 0, len(u.InviteCodes)+1)
	for _, c := range u.InviteCodes {
		if c.Used || c.Expired(now) {
			continue
		}
		kept = append(kept, c)
	}
	kept = append(kept, entry)

	if err := m.st.ReplaceInviteCodes(ctx, userID, kept); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Redeem normalizes the code and runs the pairing transition. The
// used=true flip commits in the same transaction as both partner_id
// writes, so a second redeemer of the same code fails.
func (m *InviteManager) Redeem(ctx context.Context, userID, rawCode string) (ownerID string, err error) {
	if userID == "" {
		return "", errs.ErrNotLoggedIn.Wrap()
	}
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if len(code) != ids.InviteCodeLength {
		return "", errs.ErrInvalidOrExpiredCode.WrapMsg("bad code shape")
	}

	u, err := m.st.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", errs.ErrNotLoggedIn.WrapMsg("user record missing", "userID", userID)
	}
	if u.HasPartner() {
		return "", errs.ErrAlreadyPartnered.Wrap()
	}

	now := time.Now()
	owner, entry, err := m.st.FindRedeemableCode(ctx, code, now)
	if err != nil {
		return "", err
	}
	if owner == nil || entry == nil {
		return "", errs.ErrInvalidOrExpiredCode.Wrap()
	}
	if owner.UserID == userID {
		return "", errs.ErrSelfPairing.Wrap()
	}
	if owner.HasPartner() {
		// issuer paired up since generating; their codes are dead
		return "", errs.ErrInvalidOrExpiredCode.Wrap()
	}

	if err := m.st.PairWithCode(ctx, owner.UserID, userID, code, now); err != nil {
		return "", err
	}
	return owner.UserID, nil
}

// Active returns the caller's newest redeemable code, or nil.
func (m *InviteManager) Active(ctx context.Context, userID string) (*model.InviteCode, error) {
	u, err := m.st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	now := time.Now()
	var best *model.InviteCode
	for i := range u.InviteCodes {
		c := &u.InviteCodes[i]
		if c.Used || c.Expired(now) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}
