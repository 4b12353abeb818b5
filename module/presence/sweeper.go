package presence

import (
	"context"
	"time"

	"PairLink/logger"
	"PairLink/tools/safe"
)

// Sweeper emulates the server-side half of the on-disconnect primitive:
// it periodically lists registered hooks and, for any hook whose
// connection lease has lapsed without a graceful teardown, applies the
// pre-registered write (presence offline + last-seen stamp) and retires
// the hook.
type Sweeper struct {
	st       Store
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSweeper(st Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sweeper{st: st, interval: interval}
}

func (s *Sweeper) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})

	safe.Go("presence.Sweeper", func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	})
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	hooks, err := s.st.ListDisconnectHooks(ctx)
	if err != nil {
		logger.Warnf("[presence] sweep list hooks: %v", err)
		return
	}
	now := time.Now()
	for i := range hooks {
		h := &hooks[i]
		conn, err := s.st.GetConnection(ctx, h.UserID)
		if err != nil {
			logger.Warnf("[presence] sweep get connection %s: %v", h.UserID, err)
			continue
		}
		if conn != nil && conn.ConnectionID == h.ConnectionID {
			continue // session still alive
		}
		if conn != nil {
			// a newer session took over but left this hook behind;
			// retire it without touching the live state
			if err := s.st.CancelDisconnectHook(ctx, h.UserID, h.ConnectionID); err != nil {
				logger.Warnf("[presence] sweep cancel stale hook %s: %v", h.UserID, err)
			}
			continue
		}

		if err := s.st.SetOnline(ctx, h.UserID, false, now); err != nil {
			logger.Warnf("[presence] sweep apply hook %s: %v", h.UserID, err)
			continue
		}
		if err := s.st.CancelDisconnectHook(ctx, h.UserID, h.ConnectionID); err != nil {
			logger.Warnf("[presence] sweep retire hook %s: %v", h.UserID, err)
			continue
		}
		logger.Infof("[presence] applied disconnect hook for %s (conn %s)", h.UserID, h.ConnectionID)
	}
}
