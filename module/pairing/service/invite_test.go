package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PairLink/module/pairing/model"
	"PairLink/module/pairing/store"
	errs "PairLink/tools/errs"
)

func seedUser(t *testing.T, st store.Store, id, name, email string) {
	t.Helper()
	err := st.UpsertUser(context.Background(), &model.User{
		UserID:      id,
		DisplayName: name,
		Email:       email,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestGenerateRequiresLogin(t *testing.T) {
	m := NewInviteManager(store.NewMemoryStore())

	if _, err := m.Generate(context.Background(), ""); !errors.Is(err, errs.ErrNotLoggedIn) {
		t.Errorf("empty user: got %v, want not-logged-in", err)
	}
	if _, err := m.Generate(context.Background(), "ghost"); !errors.Is(err, errs.ErrNotLoggedIn) {
		t.Errorf("unknown user: got %v, want not-logged-in", err)
	}
}

func TestGenerateRejectsPartneredUser(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	m := NewInviteManager(st)
	ctx := context.Background()

	code, err := m.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Redeem(ctx, "bob", code.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := m.Generate(ctx, "alice"); !errors.Is(err, errs.ErrAlreadyPartnered) {
		t.Errorf("partnered generate: got %v, want already-partnered", err)
	}
}

func TestGeneratePrunesDeadCodes(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	m := NewInviteManager(st)
	ctx := context.Background()

	now := time.Now()
	stale := []model.InviteCode{
		{Code: "DEAD01", CreatedBy: "alice", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-50 * time.Minute)},
		{Code: "USED02", CreatedBy: "alice", CreatedAt: now, ExpiresAt: now.Add(model.InviteCodeTTL), Used: true, UsedBy: "x"},
		{Code: "LIVE03", CreatedBy: "alice", CreatedAt: now, ExpiresAt: now.Add(model.InviteCodeTTL)},
	}
	if err := st.ReplaceInviteCodes(ctx, "alice", stale); err != nil {
		t.Fatalf("seed codes: %v", err)
	}

	fresh, err := m.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	u, err := st.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(u.InviteCodes) != 2 {
		t.Fatalf("got %d codes after generation, want 2 (live + fresh)", len(u.InviteCodes))
	}
	kept := map[string]bool{}
	for _, c := range u.InviteCodes {
		kept[c.Code] = true
	}
	if !kept["LIVE03"] || !kept[fresh.Code] {
		t.Errorf("kept codes %v, want LIVE03 and %s", kept, fresh.Code)
	}
}

func TestRedeemPairsSymmetrically(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	m := NewInviteManager(st)
	ctx := context.Background()

	code, err := m.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// lowercase with whitespace must normalize
	ownerID, err := m.Redeem(ctx, "bob", "  "+strings.ToLower(code.Code)+" ")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if ownerID != "alice" {
		t.Errorf("ownerID = %s, want alice", ownerID)
	}

	alice, _ := st.GetUser(ctx, "alice")
	bob, _ := st.GetUser(ctx, "bob")
	if alice.PartnerID != "bob" || bob.PartnerID != "alice" {
		t.Fatalf("asymmetric pairing: alice->%q bob->%q", alice.PartnerID, bob.PartnerID)
	}
	if alice.PartnerName != "Bob" || bob.PartnerName != "Alice" {
		t.Errorf("partner names alice->%q bob->%q", alice.PartnerName, bob.PartnerName)
	}

	entry := alice.InviteCodes[len(alice.InviteCodes)-1]
	if !entry.Used || entry.UsedBy != "bob" {
		t.Errorf("code entry not marked used by bob: %+v", entry)
	}
}

func TestRedeemSecondRedeemerFails(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	seedUser(t, st, "carol", "Carol", "carol@example.com")
	m := NewInviteManager(st)
	ctx := context.Background()

	code, err := m.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Redeem(ctx, "bob", code.Code); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := m.Redeem(ctx, "carol", code.Code); !errors.Is(err, errs.ErrInvalidOrExpiredCode) {
		t.Errorf("second redeem: got %v, want invalid-or-expired", err)
	}
}

func TestRedeemRejectsSelfAndBadShape(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	m := NewInviteManager(st)
	ctx := context.Background()

	code, err := m.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Redeem(ctx, "alice", code.Code); !errors.Is(err, errs.ErrSelfPairing) {
		t.Errorf("self redeem: got %v, want self-pairing", err)
	}
	if _, err := m.Redeem(ctx, "alice", "AB"); !errors.Is(err, errs.ErrInvalidOrExpiredCode) {
		t.Errorf("short code: got %v, want invalid-or-expired", err)
	}
	if _, err := m.Redeem(ctx, "alice", "NOSUCH"); !errors.Is(err, errs.ErrInvalidOrExpiredCode) {
		t.Errorf("unknown code: got %v, want invalid-or-expired", err)
	}
}

func TestRedeemHonorsExpiryWithGrace(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	seedUser(t, st, "bob", "Bob", "bob@example.com")
	m := NewInviteManager(st)
	ctx := context.Background()

	now := time.Now()
	within := model.InviteCode{
		Code: "GRACE1", CreatedBy: "alice",
		CreatedAt: now.Add(-model.InviteCodeTTL - 10*time.Second),
		ExpiresAt: now.Add(-10 * time.Second), // expired, but inside grace
	}
	beyond := model.InviteCode{
		Code: "GONE22", CreatedBy: "alice",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-model.InviteCodeGrace - time.Minute),
	}
	if err := st.ReplaceInviteCodes(ctx, "alice", []model.InviteCode{within, beyond}); err != nil {
		t.Fatalf("seed codes: %v", err)
	}

	if _, err := m.Redeem(ctx, "bob", "GONE22"); !errors.Is(err, errs.ErrInvalidOrExpiredCode) {
		t.Errorf("past grace: got %v, want invalid-or-expired", err)
	}
	if _, err := m.Redeem(ctx, "bob", "GRACE1"); err != nil {
		t.Errorf("within grace: %v", err)
	}
}

func TestActiveReturnsNewestRedeemable(t *testing.T) {
	st := store.NewMemoryStore()
	seedUser(t, st, "alice", "Alice", "alice@example.com")
	m := NewInviteManager(st)
	ctx := context.Background()

	if c, err := m.Active(ctx, "alice"); err != nil || c != nil {
		t.Fatalf("no codes yet: got %v, %v", c, err)
	}

	first, err := m.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := m.Generate(ctx, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	active, err := m.Active(ctx, "alice")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.Code != second.Code {
		t.Errorf("active = %+v, want newest %s (first was %s)", active, second.Code, first.Code)
	}
}
