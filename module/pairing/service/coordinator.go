package service

import (
	"context"
	"sync"
	"time"

	"PairLink/logger"
	"PairLink/module/pairing/model"
	"PairLink/module/pairing/store"
	"PairLink/module/presence"
	errs "PairLink/tools/errs"
	"PairLink/tools/retry"
	"PairLink/tools/safe"
)

// Coordinator is the pairing surface exposed to the UI layer. It
// composes the invite and request managers, the durable store and the
// presence manager, and owns the cross-document invariant: every state
// change touching both partners goes through one atomic transaction.
type Coordinator struct {
	st       store.Store
	invites  *InviteManager
	requests *RequestManager
	sessions *presence.Manager
	pst      presence.Store
	notifier Notifier
	policy   retry.Policy
}

func NewCoordinator(st store.Store, pst presence.Store, sessions *presence.Manager, notifier Notifier, policy retry.Policy) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Coordinator{
		st:       st,
		invites:  NewInviteManager(st),
		requests: NewRequestManager(st),
		sessions: sessions,
		pst:      pst,
		notifier: notifier,
		policy:   policy,
	}
}

// NewDirectory exposes the durable store through the reconciler's
// double-check interface; main wires it into the presence manager.
func NewDirectory(st store.Store) presence.Directory {
	return directory{st: st}
}

// Login starts (or reuses) the caller's presence session.
func (c *Coordinator) Login(ctx context.Context, userID string) error {
	if userID == "" {
		return errs.ErrNotLoggedIn.Wrap()
	}
	_, err := c.sessions.Ensure(ctx, userID)
	return err
}

// Logout is the graceful teardown path.
func (c *Coordinator) Logout(ctx context.Context, userID string) {
	c.sessions.Stop(ctx, userID)
}

func (c *Coordinator) GenerateInviteCode(ctx context.Context, userID string) (*model.InviteCode, error) {
	var entry *model.InviteCode
	err := retry.Do(ctx, func(cx context.Context) error {
		var e error
		entry, e = c.invites.Generate(cx, userID)
		return e
	}, c.policy)
	return entry, err
}

// ConnectWithCode redeems an invite code. The durable transition is
// retried under the backoff policy; afterwards the caller's presence
// session restarts so it begins tracking the new partner, and the
// partner gets a best-effort notification.
func (c *Coordinator) ConnectWithCode(ctx context.Context, userID, code string) error {
	var ownerID string
	err := retry.Do(ctx, func(cx context.Context) error {
		var e error
		ownerID, e = c.invites.Redeem(cx, userID, code)
		return e
	}, c.policy)
	if err != nil {
		return err
	}

	c.afterPairing(ctx, userID, ownerID)
	return nil
}

func (c *Coordinator) SearchUsers(ctx context.Context, userID, term string) ([]model.User, error) {
	return c.requests.Search(ctx, userID, term)
}

func (c *Coordinator) SendPartnerRequest(ctx context.Context, senderID, recipientID string) (*model.PartnerRequest, error) {
	var req *model.PartnerRequest
	err := retry.Do(ctx, func(cx context.Context) error {
		var e error
		req, e = c.requests.Send(cx, senderID, recipientID)
		return e
	}, c.policy)
	return req, err
}

func (c *Coordinator) AcceptPartnerRequest(ctx context.Context, userID, requestID string) error {
	var senderID string
	err := retry.Do(ctx, func(cx context.Context) error {
		var e error
		senderID, e = c.requests.Accept(cx, userID, requestID)
		return e
	}, c.policy)
	if err != nil {
		return err
	}

	c.afterPairing(ctx, userID, senderID)
	return nil
}

func (c *Coordinator) DeclinePartnerRequest(ctx context.Context, userID, requestID string) error {
	return retry.Do(ctx, func(cx context.Context) error {
		return c.requests.Decline(cx, userID, requestID)
	}, c.policy)
}

func (c *Coordinator) PendingRequests(ctx context.Context, userID string) ([]model.PartnerRequest, error) {
	return c.requests.Pending(ctx, userID)
}

// DisconnectPartner nulls the partnership durably, then cleans the
// ephemeral side best-effort in parallel. Returns once the durable
// nulling is confirmed; presence races are tolerated and corrected by
// the reconciler.
func (c *Coordinator) DisconnectPartner(ctx context.Context, userID string) error {
	if userID == "" {
		return errs.ErrNotLoggedIn.Wrap()
	}
	u, err := c.st.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return errs.ErrNotLoggedIn.WrapMsg("user record missing", "userID", userID)
	}
	if !u.HasPartner() {
		return errs.ErrNotConnected.Wrap()
	}
	partnerID := u.PartnerID

	if err := retry.Do(ctx, func(cx context.Context) error {
		return c.st.Unpair(cx, userID, partnerID)
	}, c.policy); err != nil {
		return err
	}

	// ephemeral cleanup; removing the partner's connection record is
	// what nudges their reconciler, whose double-check now confirms
	now := time.Now()
	var wg sync.WaitGroup
	cleanup := []func(context.Context) error{
		func(cx context.Context) error { return c.pst.DeleteConnection(cx, userID) },
		func(cx context.Context) error { return c.pst.DeleteConnection(cx, partnerID) },
		func(cx context.Context) error { return c.pst.SetOnline(cx, userID, true, now) },
	}
	for _, op := range cleanup {
		op := op
		wg.Add(1)
		safe.Go("pairing.disconnect.cleanup", func() {
			defer wg.Done()
			if err := op(ctx); err != nil {
				logger.Warnf("[pairing] disconnect cleanup: %v", err)
			}
		})
	}
	wg.Wait()

	safe.Go("pairing.notify", func() {
		if err := c.notifier.PartnerUnpaired(context.Background(), partnerID, userID); err != nil {
			logger.Warnf("[pairing] unpair notification to %s failed: %v", partnerID, err)
		}
	})

	if err := c.sessions.Restart(ctx, userID); err != nil {
		logger.Warnf("[pairing] presence restart after disconnect: %v", err)
	}
	return nil
}

// afterPairing restarts the caller's presence tracking and notifies the
// new partner. Neither step can fail the already-committed pairing.
func (c *Coordinator) afterPairing(ctx context.Context, userID, partnerID string) {
	if err := c.sessions.Restart(ctx, userID); err != nil {
		logger.Warnf("[pairing] presence restart after pairing: %v", err)
	}

	var name string
	if u, err := c.st.GetUser(ctx, userID); err == nil && u != nil {
		name = u.DisplayName
	}
	safe.Go("pairing.notify", func() {
		if err := c.notifier.PartnerPaired(context.Background(), partnerID, userID, name); err != nil {
			logger.Warnf("[pairing] pair notification to %s failed: %v", partnerID, err)
		}
	})
}

// Status aggregates the reactive fields the UI binds to.
type Status struct {
	PartnerID       string                 `json:"partnerId,omitempty"`
	PartnerName     string                 `json:"partnerName,omitempty"`
	PartnerOnline   bool                   `json:"partnerOnline"`
	ActiveCode      *model.InviteCode      `json:"activeCode,omitempty"`
	PendingRequests []model.PartnerRequest `json:"pendingRequests,omitempty"`
	Online          bool                   `json:"online"`
	Notices         []presence.Notice      `json:"notices,omitempty"`
}

// Status returns the current pairing state in a single read, draining
// any queued one-shot notices (the UI shows them once and dismisses).
func (c *Coordinator) Status(ctx context.Context, userID string) (*Status, error) {
	if userID == "" {
		return nil, errs.ErrNotLoggedIn.Wrap()
	}
	u, err := c.st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrNotLoggedIn.WrapMsg("user record missing", "userID", userID)
	}

	st := &Status{
		PartnerID:   u.PartnerID,
		PartnerName: u.PartnerName,
	}

	if u.HasPartner() {
		// a partnered user's outstanding codes are dead, never shown
		if p, err := c.pst.GetPresence(ctx, u.PartnerID); err == nil && p != nil {
			st.PartnerOnline = p.IsOnline
		}
	} else if code, err := c.invites.Active(ctx, userID); err == nil {
		st.ActiveCode = code
	}
	if reqs, err := c.requests.Pending(ctx, userID); err == nil {
		st.PendingRequests = reqs
	}

	if s := c.sessions.Get(userID); s != nil {
		st.Online = s.State() == presence.StateConnected
		for {
			select {
			case n := <-s.Notices():
				st.Notices = append(st.Notices, n)
				continue
			default:
			}
			break
		}
	}
	return st, nil
}
