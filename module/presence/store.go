package presence

import (
	"context"
	"time"
)

// Store is the ephemeral presence backend. Connection records are
// single-writer (only the owning session writes its own) and read-many;
// readers must treat absence as a first-class state, so Get methods
// return (nil, nil) for missing records.
type Store interface {
	// PutConnection (re)writes the record and starts its lease.
	PutConnection(ctx context.Context, rec *ConnectionRecord) error
	GetConnection(ctx context.Context, userID string) (*ConnectionRecord, error)
	DeleteConnection(ctx context.Context, userID string) error
	// TouchConnection refreshes the lease (heartbeat).
	TouchConnection(ctx context.Context, userID string, at time.Time) error

	PutPresence(ctx context.Context, rec *PresenceRecord) error
	GetPresence(ctx context.Context, userID string) (*PresenceRecord, error)
	// SetOnline flips is_online; going offline stamps last_online.
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error

	RegisterDisconnectHook(ctx context.Context, h *DisconnectHook) error
	// CancelDisconnectHook removes the hook only while it still belongs
	// to connectionID, so a fresh session's hook is never cancelled by
	// a stale one tearing down.
	CancelDisconnectHook(ctx context.Context, userID, connectionID string) error
	ListDisconnectHooks(ctx context.Context) ([]DisconnectHook, error)
}
