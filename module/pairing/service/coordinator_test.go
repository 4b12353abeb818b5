package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"PairLink/module/pairing/store"
	"PairLink/module/presence"
	errs "PairLink/tools/errs"
	"PairLink/tools/retry"
)

func newTestCoordinator(st store.Store) (*Coordinator, *presence.MemoryStore) {
	pst := presence.NewMemoryStore(200 * time.Millisecond)
	sessions := presence.NewManager(context.Background(), pst, NewDirectory(st), presence.Options{
		Heartbeat:     50 * time.Millisecond,
		WatchInterval: 10 * time.Millisecond,
		SetupAttempts: 1,
		SetupDelay:    time.Millisecond,
	})
	policy := retry.Policy{MaxAttempts: 1, InitialDelay: time.Millisecond, AttemptTimeout: time.Second}
	return NewCoordinator(st, pst, sessions, nil, policy), pst
}

func TestDisconnectRequiresPartner(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	co, _ := newTestCoordinator(st)
	ctx := context.Background()

	if err := co.DisconnectPartner(ctx, ""); !errors.Is(err, errs.ErrNotLoggedIn) {
		t.Errorf("anonymous disconnect: got %v, want not-logged-in", err)
	}
	if err := co.DisconnectPartner(ctx, "alice"); !errors.Is(err, errs.ErrNotConnected) {
		t.Errorf("unpartnered disconnect: got %v, want not-connected", err)
	}
}

func TestConnectWithCodeThenDisconnect(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	co, pst := newTestCoordinator(st)
	ctx := context.Background()

	if err := co.Login(ctx, "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	defer co.Logout(ctx, "alice")

	code, err := co.GenerateInviteCode(ctx, "bob")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := co.ConnectWithCode(ctx, "alice", code.Code); err != nil {
		t.Fatalf("connect: %v", err)
	}

	alice, _ := st.GetUser(ctx, "alice")
	bob, _ := st.GetUser(ctx, "bob")
	if alice.PartnerID != "bob" || bob.PartnerID != "alice" {
		t.Fatalf("asymmetric pairing: alice->%q bob->%q", alice.PartnerID, bob.PartnerID)
	}

	if err := co.DisconnectPartner(ctx, "alice"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	alice, _ = st.GetUser(ctx, "alice")
	bob, _ = st.GetUser(ctx, "bob")
	if alice.PartnerID != "" || bob.PartnerID != "" {
		t.Fatalf("disconnect must null both sides: alice->%q bob->%q", alice.PartnerID, bob.PartnerID)
	}

	// the partner's connection record is gone, which is what nudges
	// their reconciler on the other device
	if conn, _ := pst.GetConnection(ctx, "bob"); conn != nil {
		t.Errorf("bob's connection record survived disconnect: %+v", conn)
	}
}

func TestStatusAggregation(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	co, pst := newTestCoordinator(st)
	ctx := context.Background()

	if _, err := co.Status(ctx, ""); !errors.Is(err, errs.ErrNotLoggedIn) {
		t.Fatalf("anonymous status: got %v", err)
	}

	if err := co.Login(ctx, "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	defer co.Logout(ctx, "alice")

	code, err := co.GenerateInviteCode(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stat, err := co.Status(ctx, "alice")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !stat.Online {
		t.Errorf("logged-in user should report online")
	}
	if stat.ActiveCode == nil || stat.ActiveCode.Code != code.Code {
		t.Errorf("active code = %+v, want %s", stat.ActiveCode, code.Code)
	}
	if stat.PartnerID != "" {
		t.Errorf("no partner yet, got %q", stat.PartnerID)
	}

	// bob sends a request; it shows up in alice's status
	if _, err := co.SendPartnerRequest(ctx, "bob", "alice"); err != nil {
		t.Fatalf("send request: %v", err)
	}
	stat, err = co.Status(ctx, "alice")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(stat.PendingRequests) != 1 || stat.PendingRequests[0].SenderID != "bob" {
		t.Fatalf("pending = %+v, want bob's request", stat.PendingRequests)
	}

	if err := co.AcceptPartnerRequest(ctx, "alice", stat.PendingRequests[0].RequestID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := pst.SetOnline(ctx, "bob", true, time.Now()); err != nil {
		t.Fatalf("set bob online: %v", err)
	}

	stat, err = co.Status(ctx, "alice")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if stat.PartnerID != "bob" || stat.PartnerName != "Bob" {
		t.Errorf("partner = %q/%q, want bob/Bob", stat.PartnerID, stat.PartnerName)
	}
	if !stat.PartnerOnline {
		t.Errorf("partner presence should report online")
	}
	if stat.ActiveCode != nil {
		t.Errorf("invite code should be consumed-or-hidden after pairing, got %+v", stat.ActiveCode)
	}
}
