package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"PairLink/module/pairing/model"
	"PairLink/module/pairing/store"
	errs "PairLink/tools/errs"
)

func TestSearchValidation(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	m := NewRequestManager(st)
	ctx := context.Background()

	if _, err := m.Search(ctx, "", "bo"); !errors.Is(err, errs.ErrNotLoggedIn) {
		t.Errorf("anonymous search: got %v, want not-logged-in", err)
	}
	if _, err := m.Search(ctx, "alice", " b "); !errors.Is(err, errs.ErrTermTooShort) {
		t.Errorf("one-char term: got %v, want term-too-short", err)
	}
}

func TestSearchExcludesCallerAndPartnered(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice Boyd", "alice@example.com")
	seedUser(t, st, "bob", "Bobby", "bob@example.com")
	seedUser(t, st, "carol", "Carol", "bo-carol@example.com")
	seedUser(t, st, "dave", "Bo Dave", "dave@example.com")
	m := NewRequestManager(st)
	ctx := context.Background()

	// pair dave off so he drops out of results
	seedUser(t, st, "eve", "Eve", "eve@example.com")
	im := NewInviteManager(st)
	code, err := im.Generate(ctx, "dave")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := im.Redeem(ctx, "eve", code.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	got, err := m.Search(ctx, "alice", "bo")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	ids := map[string]bool{}
	for _, u := range got {
		ids[u.UserID] = true
	}
	// "bo" matches Alice Boyd (caller, excluded), Bobby by name,
	// carol by email, Bo Dave (partnered, excluded)
	if !ids["bob"] || !ids["carol"] {
		t.Errorf("results %v, want bob and carol", ids)
	}
	if ids["alice"] {
		t.Errorf("caller must not appear in results")
	}
	if ids["dave"] {
		t.Errorf("partnered users must not appear in results")
	}
}

func TestSendAcceptPairsSymmetrically(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	m := NewRequestManager(st)
	ctx := context.Background()

	req, err := m.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if req.Status != model.RequestPending || req.SenderName != "Alice" {
		t.Fatalf("unexpected request %+v", req)
	}

	pending, err := m.Pending(ctx, "bob")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].RequestID != req.RequestID {
		t.Fatalf("pending = %+v, want the sent request", pending)
	}

	senderID, err := m.Accept(ctx, "bob", req.RequestID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if senderID != "alice" {
		t.Errorf("senderID = %s, want alice", senderID)
	}

	alice, _ := st.GetUser(ctx, "alice")
	bob, _ := st.GetUser(ctx, "bob")
	if alice.PartnerID != "bob" || bob.PartnerID != "alice" {
		t.Fatalf("asymmetric pairing: alice->%q bob->%q", alice.PartnerID, bob.PartnerID)
	}
	if len(bob.PendingRequests) != 0 {
		t.Errorf("accepted request still pending on recipient: %v", bob.PendingRequests)
	}
}

func TestSendValidation(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	seedUser(t, st, "carol", "Carol", "carol@example.com")
	m := NewRequestManager(st)
	ctx := context.Background()

	if _, err := m.Send(ctx, "alice", "alice"); !errors.Is(err, errs.ErrSelfPairing) {
		t.Errorf("self request: got %v, want self-pairing", err)
	}

	im := NewInviteManager(st)
	code, err := im.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := im.Redeem(ctx, "bob", code.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := m.Send(ctx, "alice", "carol"); !errors.Is(err, errs.ErrAlreadyPartnered) {
		t.Errorf("partnered sender: got %v, want already-partnered", err)
	}
}

func TestAcceptAuthorizationAndState(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	seedUser(t, st, "carol", "Carol", "carol@example.com")
	m := NewRequestManager(st)
	ctx := context.Background()

	req, err := m.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := m.Accept(ctx, "bob", "no-such-request"); !errors.Is(err, errs.ErrRequestNotFound) {
		t.Errorf("missing request: got %v, want request-not-found", err)
	}
	if _, err := m.Accept(ctx, "carol", req.RequestID); !errors.Is(err, errs.ErrNotAuthorized) {
		t.Errorf("wrong recipient: got %v, want not-authorized", err)
	}

	if err := m.Decline(ctx, "bob", req.RequestID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := m.Accept(ctx, "bob", req.RequestID); !errors.Is(err, errs.ErrRequestNoLongerPending) {
		t.Errorf("declined request: got %v, want no-longer-pending", err)
	}
}

func TestAcceptExpiredRequest(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	ctx := context.Background()

	req := &model.PartnerRequest{
		RequestID:   "req-expired",
		SenderID:    "alice",
		SenderName:  "Alice",
		RecipientID: "bob",
		Status:      model.RequestPending,
		CreateTime:  time.Now().Add(-model.PartnerRequestTTL - time.Minute),
		ExpireTime:  time.Now().Add(-time.Minute),
	}
	if err := st.CreateRequest(ctx, req); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	m := NewRequestManager(st)
	if _, err := m.Accept(ctx, "bob", "req-expired"); !errors.Is(err, errs.ErrRequestExpired) {
		t.Errorf("expired accept: got %v, want request-expired", err)
	}

	// expired entries are filtered from the pending view, not surfaced
	pending, err := m.Pending(ctx, "bob")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %+v, want empty", pending)
	}
}

func TestDeclineIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	m := NewRequestManager(st)
	ctx := context.Background()

	req, err := m.Send(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Decline(ctx, "bob", req.RequestID); err != nil {
			t.Fatalf("decline #%d: %v", i+1, err)
		}
	}
	if err := m.Decline(ctx, "bob", "never-existed"); err != nil {
		t.Fatalf("decline of missing request: %v", err)
	}

	got, err := st.GetRequest(ctx, req.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Status != model.RequestDeclined {
		t.Errorf("status = %s, want declined", got.Status)
	}
}
