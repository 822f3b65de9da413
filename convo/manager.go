package convo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/qrouter/core/types"
)

// entry pairs a Conversation with the lock that serializes its mutations,
// so distinct (user, session) keys can be mutated concurrently while a
// single key's writers are serialized (spec §4.3 concurrency contract).
type entry struct {
	mu   sync.Mutex
	conv *Conversation
}

// Manager is the Context Manager (C3): the sole owner of every
// Conversation. Callers only ever see snapshots via its read operations.
type Manager struct {
	tokenizer        Tokenizer
	maxContextTokens int
	sessionTimeout   time.Duration
	logger           *zap.Logger
	persister        Persister

	mu      sync.RWMutex
	entries map[string]*entry

	evictions uint64
}

// NewManager creates a Context Manager. maxContextTokens and
// sessionTimeout are the defaults applied to every new conversation;
// both stay fixed for the Manager's lifetime (there is no setter).
func NewManager(tokenizer Tokenizer, maxContextTokens int, sessionTimeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tokenizer:        tokenizer,
		maxContextTokens: maxContextTokens,
		sessionTimeout:   sessionTimeout,
		logger:           logger,
		entries:          make(map[string]*entry),
	}
}

// WithPersister attaches a durable backing store. When AddMessage misses
// the in-memory map (e.g. on a cold-started process), it loads the
// conversation from the persister before creating a new one, and every
// AddMessage writes the conversation back. Read operations
// (GetConversationContext, GetConversationHistory, GetStats) consult only
// the in-memory map.
func (m *Manager) WithPersister(p Persister) *Manager {
	m.persister = p
	return m
}

func key(userID, sessionID string) string { return userID + "\x1f" + sessionID }

func (m *Manager) getOrCreate(userID, sessionID string) *entry {
	k := key(userID, sessionID)

	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[k]; ok {
		return e
	}

	conv := m.loadFromPersister(userID, sessionID)
	if conv == nil {
		conv = &Conversation{
			UserID:           userID,
			SessionID:        sessionID,
			MaxContextTokens: m.maxContextTokens,
			LastActive:       time.Now(),
		}
	}
	e = &entry{conv: conv}
	m.entries[k] = e
	return e
}

// loadFromPersister recovers a conversation after a cold start. A miss or
// error both return nil: either way the caller falls back to "create new".
func (m *Manager) loadFromPersister(userID, sessionID string) *Conversation {
	if m.persister == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conv, ok, err := m.persister.Load(ctx, userID, sessionID)
	if err != nil {
		m.logger.Warn("conversation persister load failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return conv
}

// AddMessage appends a message, estimates its token count, then truncates
// from the oldest non-system message forward until the conversation fits
// MaxContextTokens. System messages are never evicted by truncation.
func (m *Manager) AddMessage(userID, sessionID string, role Role, content string, metadata map[string]any) error {
	if !role.valid() {
		return types.NewValidationError(fmt.Sprintf("invalid message role: %q", role))
	}

	e := m.getOrCreate(userID, sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	msg := Message{
		Role:       role,
		Content:    content,
		TokenCount: m.tokenizer.CountTokens(content),
		Metadata:   metadata,
		CreatedAt:  now,
	}
	e.conv.Messages = append(e.conv.Messages, msg)
	e.conv.LastActive = now

	truncateOldestNonSystem(e.conv)
	m.saveToPersister(e.conv)
	return nil
}

// saveToPersister write-throughs a conversation snapshot. A failure is
// logged, never returned: the in-memory copy remains authoritative for
// this process's lifetime.
func (m *Manager) saveToPersister(conv *Conversation) {
	if m.persister == nil {
		return
	}
	snapshot := *conv
	snapshot.Messages = append([]Message(nil), conv.Messages...)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.persister.Save(ctx, &snapshot); err != nil {
		m.logger.Warn("conversation persister save failed", zap.Error(err))
	}
}

// truncateOldestNonSystem drops the oldest non-system message repeatedly
// until total tokens fit within MaxContextTokens, or no non-system message
// remains. Mirrors llm/context/manager.go's pruneOldest, restated as an
// in-place truncation rather than a pure function over a copy.
func truncateOldestNonSystem(c *Conversation) {
	if c.MaxContextTokens <= 0 {
		return
	}
	for c.totalTokens() > c.MaxContextTokens {
		idx := -1
		for i, m := range c.Messages {
			if m.Role != RoleSystem {
				idx = i
				break
			}
		}
		if idx == -1 {
			return // only system messages remain; never evict them
		}
		c.Messages = append(c.Messages[:idx], c.Messages[idx+1:]...)
	}
}

// GetConversationContext returns an ordered snapshot of a conversation's
// messages. An unknown session returns an empty slice, never an error.
func (m *Manager) GetConversationContext(userID, sessionID string, includeSystem bool) []Message {
	k := key(userID, sessionID)

	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Message, 0, len(e.conv.Messages))
	for _, msg := range e.conv.Messages {
		if !includeSystem && msg.Role == RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// GetConversationHistory returns per-session summaries for userID, most
// recently active first, bounded to limit entries.
func (m *Manager) GetConversationHistory(userID string, limit int) []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var summaries []Summary
	for _, e := range m.entries {
		e.mu.Lock()
		if e.conv.UserID == userID {
			summaries = append(summaries, Summary{
				UserID:       e.conv.UserID,
				SessionID:    e.conv.SessionID,
				MessageCount: len(e.conv.Messages),
				LastActive:   e.conv.LastActive,
			})
		}
		e.mu.Unlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActive.After(summaries[j].LastActive)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// CleanupExpiredSessions removes conversations whose LastActive is older
// than sessionTimeout, incrementing the evictions counter for each one.
// Returns the number removed.
func (m *Manager) CleanupExpiredSessions() int {
	cutoff := time.Now().Add(-m.sessionTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		e.mu.Lock()
		expired := e.conv.LastActive.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(m.entries, k)
			removed++
		}
	}
	if removed > 0 {
		atomic.AddUint64(&m.evictions, uint64(removed))
		m.logger.Info("cleaned up expired sessions", zap.Int("count", removed))
	}
	return removed
}

// GetStats returns an aggregate snapshot across all live conversations.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		TotalConversations: len(m.entries),
		Evictions:          atomic.LoadUint64(&m.evictions),
	}
	users := make(map[string]struct{})
	totalBytes := 0
	for _, e := range m.entries {
		e.mu.Lock()
		stats.TotalMessages += len(e.conv.Messages)
		users[e.conv.UserID] = struct{}{}
		for _, msg := range e.conv.Messages {
			totalBytes += len(msg.Content)
		}
		e.mu.Unlock()
	}
	stats.ActiveUsers = len(users)
	stats.MemoryUsageMB = float64(totalBytes) / (1024 * 1024)
	return stats
}
