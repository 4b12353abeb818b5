package presence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	errs "PairLink/tools/errs"

	"github.com/redis/go-redis/v9"
)

const (
	keyConnPrefix     = "pair:conn:"
	keyPresencePrefix = "pair:presence:"
	keyHookPrefix     = "pair:hook:"

	// DefaultLeaseTTL is how long a connection record outlives its last
	// heartbeat before the store considers the session gone.
	DefaultLeaseTTL = 30 * time.Second
)

// RedisStore backs the ephemeral presence store with TTL-keyed redis
// entries. The on-disconnect primitive is emulated: hooks are stored
// under their own keys and a Sweeper applies them once the matching
// connection lease has lapsed.
type RedisStore struct {
	rdb      *redis.Client
	leaseTTL time.Duration
}

func NewRedisStore(rdb *redis.Client, leaseTTL time.Duration) *RedisStore {
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	return &RedisStore{rdb: rdb, leaseTTL: leaseTTL}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.ErrOperationTimedOut.WrapMsg(err.Error())
	}
	return errs.ErrBackendTransientFailure.WrapMsg(err.Error())
}

func (s *RedisStore) PutConnection(ctx context.Context, rec *ConnectionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(err)
	}
	return classify(s.rdb.Set(ctx, keyConnPrefix+rec.UserID, b, s.leaseTTL).Err())
}

func (s *RedisStore) GetConnection(ctx context.Context, userID string) (*ConnectionRecord, error) {
	b, err := s.rdb.Get(ctx, keyConnPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	var rec ConnectionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, errs.Wrap(err)
	}
	return &rec, nil
}

func (s *RedisStore) DeleteConnection(ctx context.Context, userID string) error {
	return classify(s.rdb.Del(ctx, keyConnPrefix+userID).Err())
}

func (s *RedisStore) TouchConnection(ctx context.Context, userID string, _ time.Time) error {
	ok, err := s.rdb.Expire(ctx, keyConnPrefix+userID, s.leaseTTL).Result()
	if err != nil {
		return classify(err)
	}
	if !ok {
		// lease already lapsed; the caller rewrites the record
		return errs.ErrBackendTransientFailure.WrapMsg("connection lease lapsed", "userID", userID)
	}
	return nil
}

func (s *RedisStore) PutPresence(ctx context.Context, rec *PresenceRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(err)
	}
	return classify(s.rdb.Set(ctx, keyPresencePrefix+rec.UserID, b, 0).Err())
}

func (s *RedisStore) GetPresence(ctx context.Context, userID string) (*PresenceRecord, error) {
	b, err := s.rdb.Get(ctx, keyPresencePrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	var rec PresenceRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, errs.Wrap(err)
	}
	return &rec, nil
}

func (s *RedisStore) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	rec, err := s.GetPresence(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &PresenceRecord{UserID: userID}
	}
	rec.IsOnline = online
	if !online {
		rec.LastOnline = at
	}
	return s.PutPresence(ctx, rec)
}

func (s *RedisStore) RegisterDisconnectHook(ctx context.Context, h *DisconnectHook) error {
	b, err := json.Marshal(h)
	if err != nil {
		return errs.Wrap(err)
	}
	return classify(s.rdb.Set(ctx, keyHookPrefix+h.UserID, b, 0).Err())
}

func (s *RedisStore) CancelDisconnectHook(ctx context.Context, userID, connectionID string) error {
	key := keyHookPrefix + userID
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return classify(err)
	}
	var h DisconnectHook
	if err := json.Unmarshal(b, &h); err != nil {
		return errs.Wrap(err)
	}
	if h.ConnectionID != connectionID {
		return nil
	}
	return classify(s.rdb.Del(ctx, key).Err())
}

func (s *RedisStore) ListDisconnectHooks(ctx context.Context) ([]DisconnectHook, error) {
	var out []DisconnectHook
	iter := s.rdb.Scan(ctx, 0, keyHookPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, classify(err)
		}
		var h DisconnectHook
		if err := json.Unmarshal(b, &h); err != nil {
			continue
		}
		if h.UserID == "" {
			h.UserID = strings.TrimPrefix(key, keyHookPrefix)
		}
		out = append(out, h)
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
