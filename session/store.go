package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps every backend failure.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrConcurrentUpdate is returned by a conditional [Patch] when the record was no
// longer live or was modified between read and write.
var ErrConcurrentUpdate = errors.New("session record changed concurrently")

// DefaultPrefix is the key namespace used when none is configured.
const DefaultPrefix = "rt"

// Store is the persistence contract of the rotation engine.
//
// Get returns (nil, nil) for a missing or expired record. Patch preserves the
// remaining TTL and is a no-op on a missing record.
type Store interface {
	Put(ctx context.Context, rec *RefreshSession, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*RefreshSession, error)
	Patch(ctx context.Context, sessionID string, p Patch) error
	IndexAdd(ctx context.Context, subjectID, sessionID string, ttl time.Duration) error
	IndexRemove(ctx context.Context, subjectID, sessionID string) error
	IndexList(ctx context.Context, subjectID string) ([]string, error)
	IndexClear(ctx context.Context, subjectID string) error
	Ping(ctx context.Context) (time.Duration, error)
}

// RedisStore is a Redis-backed [Store].
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. An empty prefix falls back to [DefaultPrefix].
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisStore) indexKey(subjectID string) string {
	return s.prefix + "u:" + subjectID
}

// Put writes rec with an absolute TTL, replacing any previous value.
func (s *RedisStore) Put(ctx context.Context, rec *RefreshSession, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("put requires a positive ttl")
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(rec.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get fetches a record. A record that fails to decode is reported as both
// ErrStoreUnavailable and ErrRecordCorrupt.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*RefreshSession, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Patch merges p into the stored record under WATCH and writes it back with
// SET XX KEEPTTL, so the remaining lifetime is never extended.
//
//	Performance: WATCH + GET + MULTI/SET/EXEC.
func (s *RedisStore) Patch(ctx context.Context, sessionID string, p Patch) error {
	key := s.key(sessionID)
	now := time.Now()

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if p.IfLive {
					return ErrConcurrentUpdate
				}
				return nil
			}
			return err
		}

		rec, err := Decode(data)
		if err != nil {
			return err
		}
		if p.IfLive && !rec.Live(now) {
			return ErrConcurrentUpdate
		}
		p.apply(rec)

		next, err := Encode(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, next, redis.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		if errors.Is(err, redis.Nil) {
			// Key expired between GET and SET.
			if p.IfLive {
				return ErrConcurrentUpdate
			}
			return nil
		}
		return err
	}

	err := s.redis.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConcurrentUpdate):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return ErrConcurrentUpdate
	case errors.Is(err, ErrRecordCorrupt):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// IndexAdd adds sessionID to the subject's owner index and refreshes the index TTL.
// Every member is written with the same refresh lifetime, so the newest member
// always carries the longest expiry.
func (s *RedisStore) IndexAdd(ctx context.Context, subjectID, sessionID string, ttl time.Duration) error {
	key := s.indexKey(subjectID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, sessionID)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IndexRemove drops sessionID from the subject's owner index.
func (s *RedisStore) IndexRemove(ctx context.Context, subjectID, sessionID string) error {
	if err := s.redis.SRem(ctx, s.indexKey(subjectID), sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IndexList returns the session ids currently indexed for subjectID.
func (s *RedisStore) IndexList(ctx context.Context, subjectID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.indexKey(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// IndexClear deletes the subject's owner index.
func (s *RedisStore) IndexClear(ctx context.Context, subjectID string) error {
	if err := s.redis.Del(ctx, s.indexKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
