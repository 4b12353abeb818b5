package presence

import (
	"context"
	"time"

	"PairLink/logger"
	"PairLink/tools/safe"
)

// ConnEvent is emitted for a watched connection record: the initial
// state and every subsequent change. Absent==true means the record is
// gone, which for a leased record is the disconnect signal.
type ConnEvent struct {
	Record *ConnectionRecord
	Absent bool
}

// PresenceEvent is emitted for a watched presence record.
type PresenceEvent struct {
	Record *PresenceRecord
}

const watchBuffer = 16

// WatchConnection polls the store and delivers an event for the initial
// value and every change of the user's connection record. The channel
// closes when ctx is cancelled; cancelling ctx is the unsubscribe.
func WatchConnection(ctx context.Context, st Store, userID string, interval time.Duration) <-chan ConnEvent {
	out := make(chan ConnEvent, watchBuffer)

	safe.Go("presence.WatchConnection", func() {
		defer close(out)

		var last *ConnectionRecord
		first := true
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			rec, err := st.GetConnection(ctx, userID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warnf("[presence] watch connection %s: %v", userID, err)
			} else if first || connChanged(last, rec) {
				first = false
				last = rec
				select {
				case out <- ConnEvent{Record: rec, Absent: rec == nil}:
				default:
					logger.Warnf("[presence] connection watcher for %s dropped an event", userID)
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	return out
}

// WatchPresence is the read-only partner presence subscription used to
// reflect partner online/offline state.
func WatchPresence(ctx context.Context, st Store, userID string, interval time.Duration) <-chan PresenceEvent {
	out := make(chan PresenceEvent, watchBuffer)

	safe.Go("presence.WatchPresence", func() {
		defer close(out)

		var last *PresenceRecord
		first := true
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			rec, err := st.GetPresence(ctx, userID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warnf("[presence] watch presence %s: %v", userID, err)
			} else if first || presenceChanged(last, rec) {
				first = false
				last = rec
				select {
				case out <- PresenceEvent{Record: rec}:
				default:
					logger.Warnf("[presence] presence watcher for %s dropped an event", userID)
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
	return out
}

func connChanged(a, b *ConnectionRecord) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	if a == nil {
		return false
	}
	return a.ConnectionID != b.ConnectionID || a.PartnerID != b.PartnerID || a.Status != b.Status
}

func presenceChanged(a, b *PresenceRecord) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	if a == nil {
		return false
	}
	return a.IsOnline != b.IsOnline || a.ConnectionID != b.ConnectionID
}
