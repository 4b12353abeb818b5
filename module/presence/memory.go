package presence

import (
	"context"
	"sync"
	"time"

	errs "PairLink/tools/errs"
)

// MemoryStore mirrors the redis-backed store for tests and local runs.
// Leases are deadlines checked on read, so an un-heartbeated connection
// "disappears" exactly as an expired redis key would.
type MemoryStore struct {
	mu       sync.Mutex
	leaseTTL time.Duration

	conns     map[string]*ConnectionRecord
	deadlines map[string]time.Time
	presence  map[string]*PresenceRecord
	hooks     map[string]*DisconnectHook
}

func NewMemoryStore(leaseTTL time.Duration) *MemoryStore {
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	return &MemoryStore{
		leaseTTL:  leaseTTL,
		conns:     make(map[string]*ConnectionRecord),
		deadlines: make(map[string]time.Time),
		presence:  make(map[string]*PresenceRecord),
		hooks:     make(map[string]*DisconnectHook),
	}
}

func (s *MemoryStore) PutConnection(_ context.Context, rec *ConnectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.conns[rec.UserID] = &c
	s.deadlines[rec.UserID] = time.Now().Add(s.leaseTTL)
	return nil
}

func (s *MemoryStore) GetConnection(_ context.Context, userID string) (*ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.conns[userID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(s.deadlines[userID]) {
		delete(s.conns, userID)
		delete(s.deadlines, userID)
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (s *MemoryStore) DeleteConnection(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, userID)
	delete(s.deadlines, userID)
	return nil
}

func (s *MemoryStore) TouchConnection(_ context.Context, userID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[userID]; !ok || time.Now().After(s.deadlines[userID]) {
		delete(s.conns, userID)
		delete(s.deadlines, userID)
		return errs.ErrBackendTransientFailure.WrapMsg("connection lease lapsed", "userID", userID)
	}
	s.deadlines[userID] = time.Now().Add(s.leaseTTL)
	return nil
}

// DropConnection simulates an abrupt client loss: the record vanishes
// without the graceful teardown path running. Test helper.
func (s *MemoryStore) DropConnection(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, userID)
	delete(s.deadlines, userID)
}

func (s *MemoryStore) PutPresence(_ context.Context, rec *PresenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.presence[rec.UserID] = &c
	return nil
}

func (s *MemoryStore) GetPresence(_ context.Context, userID string) (*PresenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.presence[userID]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (s *MemoryStore) SetOnline(_ context.Context, userID string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.presence[userID]
	if !ok {
		rec = &PresenceRecord{UserID: userID}
		s.presence[userID] = rec
	}
	rec.IsOnline = online
	if !online {
		rec.LastOnline = at
	}
	return nil
}

func (s *MemoryStore) RegisterDisconnectHook(_ context.Context, h *DisconnectHook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *h
	s.hooks[h.UserID] = &c
	return nil
}

func (s *MemoryStore) CancelDisconnectHook(_ context.Context, userID, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hooks[userID]; ok && h.ConnectionID == connectionID {
		delete(s.hooks, userID)
	}
	return nil
}

func (s *MemoryStore) ListDisconnectHooks(_ context.Context) ([]DisconnectHook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DisconnectHook, 0, len(s.hooks))
	for _, h := range s.hooks {
		out = append(out, *h)
	}
	return out, nil
}
