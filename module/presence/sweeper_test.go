package presence

import (
	"context"
	"testing"
	"time"
)

func TestSweeperAppliesHookAfterLeaseLapse(t *testing.T) {
	st := NewMemoryStore(30 * time.Millisecond)
	ctx := context.Background()

	if err := st.RegisterDisconnectHook(ctx, &DisconnectHook{
		UserID: "carl", ConnectionID: "c1", RegisteredAt: time.Now(),
	}); err != nil {
		t.Fatalf("register hook: %v", err)
	}
	if err := st.PutConnection(ctx, &ConnectionRecord{
		UserID: "carl", ConnectionID: "c1", Status: StatusOnline, LastActive: time.Now(),
	}); err != nil {
		t.Fatalf("put connection: %v", err)
	}
	if err := st.PutPresence(ctx, &PresenceRecord{UserID: "carl", IsOnline: true, ConnectionID: "c1"}); err != nil {
		t.Fatalf("put presence: %v", err)
	}

	sw := NewSweeper(st, time.Second)

	// lease still live: nothing happens
	sw.sweep(ctx)
	if pres, _ := st.GetPresence(ctx, "carl"); pres == nil || !pres.IsOnline {
		t.Fatalf("live session swept: %+v", pres)
	}

	// no heartbeat; wait out the lease and sweep again
	time.Sleep(60 * time.Millisecond)
	sw.sweep(ctx)

	pres, _ := st.GetPresence(ctx, "carl")
	if pres == nil || pres.IsOnline {
		t.Fatalf("presence should be offline after hook applied: %+v", pres)
	}
	if pres.LastOnline.IsZero() {
		t.Errorf("last-online stamp missing")
	}
	if hooks, _ := st.ListDisconnectHooks(ctx); len(hooks) != 0 {
		t.Errorf("hook not retired: %+v", hooks)
	}
}

func TestSweeperRetiresStaleHookOnly(t *testing.T) {
	st := NewMemoryStore(time.Minute)
	ctx := context.Background()

	// hook from a previous connection; a newer session is live
	if err := st.RegisterDisconnectHook(ctx, &DisconnectHook{
		UserID: "dana", ConnectionID: "old", RegisteredAt: time.Now(),
	}); err != nil {
		t.Fatalf("register hook: %v", err)
	}
	if err := st.PutConnection(ctx, &ConnectionRecord{
		UserID: "dana", ConnectionID: "new", Status: StatusOnline, LastActive: time.Now(),
	}); err != nil {
		t.Fatalf("put connection: %v", err)
	}
	if err := st.PutPresence(ctx, &PresenceRecord{UserID: "dana", IsOnline: true, ConnectionID: "new"}); err != nil {
		t.Fatalf("put presence: %v", err)
	}

	NewSweeper(st, time.Second).sweep(ctx)

	if pres, _ := st.GetPresence(ctx, "dana"); pres == nil || !pres.IsOnline {
		t.Fatalf("live presence flipped by a stale hook: %+v", pres)
	}
	if hooks, _ := st.ListDisconnectHooks(ctx); len(hooks) != 0 {
		t.Errorf("stale hook not retired: %+v", hooks)
	}
}

func TestSweeperRunsOnInterval(t *testing.T) {
	st := NewMemoryStore(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.RegisterDisconnectHook(ctx, &DisconnectHook{
		UserID: "erin", ConnectionID: "e1", RegisteredAt: time.Now(),
	}); err != nil {
		t.Fatalf("register hook: %v", err)
	}
	if err := st.PutPresence(ctx, &PresenceRecord{UserID: "erin", IsOnline: true, ConnectionID: "e1"}); err != nil {
		t.Fatalf("put presence: %v", err)
	}

	sw := NewSweeper(st, 10*time.Millisecond)
	sw.Start(ctx)
	defer sw.Stop()

	waitFor(t, "hook applied by background sweep", func() bool {
		pres, _ := st.GetPresence(ctx, "erin")
		return pres != nil && !pres.IsOnline
	})
}
