package convo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persister optionally backs a Manager with durable conversation storage
// beyond process lifetime. Manager's in-memory entries remain the
// authoritative read path; a Persister is a write-through/cold-start aid,
// not a second source of truth — the single-writer-per-key invariant is
// still enforced entirely in-process (spec §5 treats context/conversation
// state as in-process; no cross-process optimistic locking is required).
type Persister interface {
	Save(ctx context.Context, conv *Conversation) error
	Load(ctx context.Context, userID, sessionID string) (*Conversation, bool, error)
}

// RedisStore is a Persister backed by Redis, grounded on
// llm/context/session.go's RedisSessionStore: same key-prefix/TTL/JSON-blob
// shape, minus the Lua optimistic-lock script, since Manager already
// serializes writes to a given (user, session) key in-process.
type RedisStore struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a Redis-backed conversation persister. ttl bounds
// how long a conversation survives without activity before Redis itself
// expires the key (a backstop alongside Manager's CleanupExpiredSessions).
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, keyPrefix: "convo:session:", ttl: ttl}
}

func (s *RedisStore) key(userID, sessionID string) string {
	return s.keyPrefix + userID + ":" + sessionID
}

// Save writes the conversation as a JSON blob, refreshing its Redis TTL.
func (s *RedisStore) Save(ctx context.Context, conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	return s.rdb.Set(ctx, s.key(conv.UserID, conv.SessionID), data, s.ttl).Err()
}

// Load reads a conversation back. A missing key is not an error: it
// reports (nil, false, nil) so callers fall through to "create new".
func (s *RedisStore) Load(ctx context.Context, userID, sessionID string) (*Conversation, bool, error) {
	data, err := s.rdb.Get(ctx, s.key(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, false, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &conv, true, nil
}
