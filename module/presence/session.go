package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PairLink/logger"
	errs "PairLink/tools/errs"
	"PairLink/tools/retry"
	"PairLink/tools/safe"

	"github.com/google/uuid"
)

type State int32

const (
	StateChecking State = iota
	StateConnected
	StateDisconnected
	// StateUnknown is the degraded state after setup retries are
	// exhausted; the session is alive but presence is unreliable.
	StateUnknown
)

// Directory is the durable side the reconciler double-checks against.
// Lookup returns the record's partner pointer, display name and whether
// the record exists at all.
type Directory interface {
	Lookup(ctx context.Context, userID string) (partnerID, displayName string, exists bool, err error)
	Unpair(ctx context.Context, userID, partnerID string) error
}

type NoticeKind int

const (
	NoticePartnerOnline NoticeKind = iota
	NoticePartnerOffline
	NoticePartnerDisconnected
)

// Notice is surfaced to the UI layer. PartnerDisconnected carries a
// human-readable message meant to be shown once and dismissed.
type Notice struct {
	Kind      NoticeKind
	PartnerID string
	Message   string
}

type Options struct {
	Heartbeat     time.Duration
	WatchInterval time.Duration
	SetupAttempts int
	SetupDelay    time.Duration
}

func (o *Options) setDefaults() {
	if o.Heartbeat <= 0 {
		o.Heartbeat = 10 * time.Second
	}
	if o.WatchInterval <= 0 {
		o.WatchInterval = time.Second
	}
	if o.SetupAttempts <= 0 {
		o.SetupAttempts = 5
	}
	if o.SetupDelay <= 0 {
		o.SetupDelay = 2 * time.Second
	}
}

// Session is the per-user presence state machine: Checking -> Connected
// <-> Disconnected, with Unknown as the degraded overflow state. It
// owns this user's connection and presence records, watches the
// partner's, and runs the disconnect confirmation protocol.
type Session struct {
	userID string
	st     Store
	dir    Directory
	opts   Options
	// app bounds the heartbeat and watcher goroutines. It must outlive
	// individual calls: the ctx passed to Start is typically a request
	// context that is cancelled as soon as the caller returns.
	app context.Context

	mu           sync.Mutex
	state        State
	connectionID string
	partnerID    string
	partnerName  string
	cancelWatch  context.CancelFunc

	notices chan Notice
}

func NewSession(app context.Context, userID string, st Store, dir Directory, opts Options) *Session {
	opts.setDefaults()
	if app == nil {
		app = context.Background()
	}
	return &Session{
		userID:  userID,
		st:      st,
		dir:     dir,
		opts:    opts,
		app:     app,
		state:   StateChecking,
		notices: make(chan Notice, watchBuffer),
	}
}

// Notices delivers partner online/offline transitions and the one-shot
// partner-disconnected message.
func (s *Session) Notices() <-chan Notice { return s.notices }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) PartnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partnerID
}

func (s *Session) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID
}

// Start establishes the session: on-disconnect hooks first, then the
// connection and presence records, then the partner watchers. ctx
// bounds only the synchronous setup writes; the heartbeat and watchers
// run on the session's app context. Setup failures retry a bounded
// number of times with a fixed delay; past the cap the session degrades
// to StateUnknown instead of failing the app.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateChecking
	s.mu.Unlock()

	err := retry.DoTransient(ctx, s.setup, s.opts.SetupAttempts, s.opts.SetupDelay)
	if err != nil {
		s.mu.Lock()
		s.state = StateUnknown
		s.mu.Unlock()
		return errs.WrapMsg(err, "presence setup failed", "userID", s.userID)
	}
	return nil
}

// Restart tears the watchers down and re-runs setup from scratch; the
// coordinator calls it after every pairing transition.
func (s *Session) Restart(ctx context.Context) error {
	s.stopWatchers()
	return s.Start(ctx)
}

func (s *Session) setup(ctx context.Context) error {
	s.stopWatchers()

	partnerID, _, _, err := s.dir.Lookup(ctx, s.userID)
	if err != nil {
		return err
	}
	var partnerName string
	if partnerID != "" {
		_, partnerName, _, err = s.dir.Lookup(ctx, partnerID)
		if err != nil {
			return err
		}
	}

	now := time.Now()
	connID := uuid.NewString()

	// hooks go in before the records so a crash mid-setup still gets
	// cleaned up by the sweeper
	if err := s.st.RegisterDisconnectHook(ctx, &DisconnectHook{
		UserID:       s.userID,
		ConnectionID: connID,
		RegisteredAt: now,
	}); err != nil {
		return err
	}
	if err := s.st.PutPresence(ctx, &PresenceRecord{
		UserID:       s.userID,
		IsOnline:     true,
		ConnectionID: connID,
	}); err != nil {
		return err
	}
	if err := s.st.PutConnection(ctx, &ConnectionRecord{
		UserID:       s.userID,
		PartnerID:    partnerID,
		ConnectionID: connID,
		Status:       StatusOnline,
		LastActive:   now,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	wctx, cancel := context.WithCancel(s.app)
	s.cancelWatch = cancel
	s.connectionID = connID
	s.partnerID = partnerID
	s.partnerName = partnerName
	s.state = StateConnected
	s.mu.Unlock()

	s.startHeartbeat(wctx)
	if partnerID != "" {
		s.watchPartner(wctx, partnerID)
	}
	return nil
}

func (s *Session) startHeartbeat(ctx context.Context) {
	safe.Go("presence.Session.heartbeat", func() {
		ticker := time.NewTicker(s.opts.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.st.TouchConnection(ctx, s.userID, time.Now()); err != nil {
					// lease lapsed or backend blip. The sweeper may
					// already have applied and retired our hook, so
					// re-establish the full record set, not just the
					// connection.
					if err := s.rewriteRecords(ctx); err != nil && ctx.Err() == nil {
						logger.Warnf("[presence] heartbeat rewrite for %s: %v", s.userID, err)
					}
				}
			}
		}
	})
}

// rewriteRecords re-establishes the whole ephemeral record set for the
// current connection, in the same order as setup: hook first, then
// presence, then the leased connection record.
func (s *Session) rewriteRecords(ctx context.Context) error {
	s.mu.Lock()
	connID := s.connectionID
	partnerID := s.partnerID
	s.mu.Unlock()

	now := time.Now()
	if err := s.st.RegisterDisconnectHook(ctx, &DisconnectHook{
		UserID:       s.userID,
		ConnectionID: connID,
		RegisteredAt: now,
	}); err != nil {
		return err
	}
	if err := s.st.PutPresence(ctx, &PresenceRecord{
		UserID:       s.userID,
		IsOnline:     true,
		ConnectionID: connID,
	}); err != nil {
		return err
	}
	return s.st.PutConnection(ctx, &ConnectionRecord{
		UserID:       s.userID,
		PartnerID:    partnerID,
		ConnectionID: connID,
		Status:       StatusOnline,
		LastActive:   now,
	})
}

func (s *Session) watchPartner(ctx context.Context, partnerID string) {
	presenceCh := WatchPresence(ctx, s.st, partnerID, s.opts.WatchInterval)
	connCh := WatchConnection(ctx, s.st, partnerID, s.opts.WatchInterval)

	safe.Go("presence.Session.watchPartner", func() {
		var partnerOnline *bool
		// the connection watcher only emits on change, so while the
		// record stays absent an unconfirmed check must re-arm itself
		var recheck <-chan time.Time
		absent := false
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-presenceCh:
				if !ok {
					return
				}
				online := ev.Record != nil && ev.Record.IsOnline
				if partnerOnline == nil || *partnerOnline != online {
					partnerOnline = &online
					kind := NoticePartnerOffline
					if online {
						kind = NoticePartnerOnline
					}
					s.pushNotice(Notice{Kind: kind, PartnerID: partnerID})
				}
			case ev, ok := <-connCh:
				if !ok {
					return
				}
				if !ev.Absent {
					absent = false
					recheck = nil
					continue
				}
				absent = true
				if s.confirmDisconnect(ctx, partnerID) {
					return // partnership gone; watchers for this partner are done
				}
				recheck = time.After(s.opts.SetupDelay)
			case <-recheck:
				recheck = nil
				if !absent {
					continue
				}
				if s.confirmDisconnect(ctx, partnerID) {
					return
				}
				recheck = time.After(s.opts.SetupDelay)
			}
		}
	})
}

// confirmDisconnect runs the double-check protocol: the partner's
// connection record vanished, but that also happens mid-way through an
// intentional pairing change. Only a fresh durable read showing the
// partner no longer points back is treated as a genuine departure.
func (s *Session) confirmDisconnect(ctx context.Context, partnerID string) bool {
	var (
		theirPartner string
		exists       bool
	)
	err := retry.DoTransient(ctx, func(c context.Context) error {
		var e error
		theirPartner, _, exists, e = s.dir.Lookup(c, partnerID)
		return e
	}, 3, s.opts.SetupDelay)
	if err != nil {
		logger.Warnf("[presence] disconnect double-check for %s failed: %v", partnerID, err)
		return false
	}

	if exists && theirPartner == s.userID {
		// stale signal: the record drop was a blip or an in-flight
		// intentional change; leave the partnership alone
		logger.Debug("[presence] stale disconnect signal ignored")
		return false
	}

	if err := s.dir.Unpair(ctx, s.userID, partnerID); err != nil {
		logger.Errorf("[presence] unpair after confirmed disconnect: %v", err)
		return false
	}

	s.mu.Lock()
	name := s.partnerName
	s.partnerID = ""
	s.partnerName = ""
	s.mu.Unlock()

	// rewrite own records without the partner pointer; failures here
	// are tolerated, the next heartbeat or restart corrects them
	if err := s.st.DeleteConnection(ctx, s.userID); err != nil {
		logger.Warnf("[presence] delete connection after disconnect: %v", err)
	}
	if err := s.rewriteRecords(ctx); err != nil {
		logger.Warnf("[presence] record rewrite after disconnect: %v", err)
	}

	if name == "" {
		name = partnerID
	}
	s.pushNotice(Notice{
		Kind:      NoticePartnerDisconnected,
		PartnerID: partnerID,
		Message:   fmt.Sprintf("%s has disconnected", name),
	})
	return true
}

func (s *Session) pushNotice(n Notice) {
	select {
	case s.notices <- n:
	default:
		logger.Warnf("[presence] notice channel full for %s, dropping %d", s.userID, n.Kind)
	}
}

func (s *Session) stopWatchers() {
	s.mu.Lock()
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop is the graceful teardown: watchers cancelled, the pending
// on-disconnect hook retired, the connection record removed proactively
// and presence flipped offline. Distinct from the hook-applied path.
func (s *Session) Stop(ctx context.Context) {
	s.stopWatchers()

	s.mu.Lock()
	connID := s.connectionID
	s.state = StateDisconnected
	s.mu.Unlock()

	if connID == "" {
		return
	}
	now := time.Now()
	if err := s.st.CancelDisconnectHook(ctx, s.userID, connID); err != nil {
		logger.Warnf("[presence] cancel hook for %s: %v", s.userID, err)
	}
	if err := s.st.DeleteConnection(ctx, s.userID); err != nil {
		logger.Warnf("[presence] delete connection for %s: %v", s.userID, err)
	}
	if err := s.st.SetOnline(ctx, s.userID, false, now); err != nil {
		logger.Warnf("[presence] set offline for %s: %v", s.userID, err)
	}
}
