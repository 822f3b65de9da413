package convo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(maxTokens int) *Manager {
	return NewManager(NewHeuristicTokenizer(), maxTokens, time.Hour, nil)
}

func TestManager_AddMessageCreatesConversation(t *testing.T) {
	m := newTestManager(1000)

	err := m.AddMessage("u1", "s1", RoleUser, "hello", nil)
	require.NoError(t, err)

	msgs := m.GetConversationContext("u1", "s1", true)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Greater(t, msgs[0].TokenCount, 0)
}

func TestManager_InvalidRoleFailsValidation(t *testing.T) {
	m := newTestManager(1000)

	err := m.AddMessage("u1", "s1", Role("bogus"), "x", nil)
	require.Error(t, err)
}

func TestManager_UnknownSessionReturnsEmptyNeverError(t *testing.T) {
	m := newTestManager(1000)

	msgs := m.GetConversationContext("nobody", "nowhere", true)
	assert.Empty(t, msgs)
}

func TestManager_TruncatesOldestNonSystemFirst(t *testing.T) {
	// Small budget: heuristic tokenizer gives ceil(len/4)+4 per message, so
	// a handful of short messages exceeds a tight budget quickly.
	m := newTestManager(20)

	require.NoError(t, m.AddMessage("u1", "s1", RoleSystem, "sys", nil))
	require.NoError(t, m.AddMessage("u1", "s1", RoleUser, "one", nil))
	require.NoError(t, m.AddMessage("u1", "s1", RoleAssistant, "two", nil))
	require.NoError(t, m.AddMessage("u1", "s1", RoleUser, "three", nil))
	require.NoError(t, m.AddMessage("u1", "s1", RoleAssistant, "four this is longer content", nil))

	msgs := m.GetConversationContext("u1", "s1", true)

	// The system message must always survive truncation.
	require.NotEmpty(t, msgs)
	assert.Equal(t, RoleSystem, msgs[0].Role)

	total := 0
	for _, msg := range msgs {
		total += msg.TokenCount
	}
	assert.LessOrEqual(t, total, 20)
}

func TestManager_GetConversationContextFiltersSystem(t *testing.T) {
	m := newTestManager(1000)
	require.NoError(t, m.AddMessage("u1", "s1", RoleSystem, "sys", nil))
	require.NoError(t, m.AddMessage("u1", "s1", RoleUser, "hi", nil))

	withSystem := m.GetConversationContext("u1", "s1", true)
	withoutSystem := m.GetConversationContext("u1", "s1", false)

	assert.Len(t, withSystem, 2)
	assert.Len(t, withoutSystem, 1)
	assert.Equal(t, RoleUser, withoutSystem[0].Role)
}

func TestManager_GetConversationHistoryOrdersByRecency(t *testing.T) {
	m := newTestManager(1000)
	require.NoError(t, m.AddMessage("u1", "s1", RoleUser, "a", nil))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.AddMessage("u1", "s2", RoleUser, "b", nil))

	history := m.GetConversationHistory("u1", 10)
	require.Len(t, history, 2)
	assert.Equal(t, "s2", history[0].SessionID)
	assert.Equal(t, "s1", history[1].SessionID)
}

func TestManager_GetConversationHistoryRespectsLimit(t *testing.T) {
	m := newTestManager(1000)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AddMessage("u1", string(rune('a'+i)), RoleUser, "x", nil))
	}

	history := m.GetConversationHistory("u1", 2)
	assert.Len(t, history, 2)
}

func TestManager_CleanupExpiredSessionsEvicts(t *testing.T) {
	m := NewManager(NewHeuristicTokenizer(), 1000, time.Millisecond, nil)
	require.NoError(t, m.AddMessage("u1", "s1", RoleUser, "x", nil))

	time.Sleep(5 * time.Millisecond)
	removed := m.CleanupExpiredSessions()

	assert.Equal(t, 1, removed)
	assert.Empty(t, m.GetConversationContext("u1", "s1", true))
	assert.Equal(t, uint64(1), m.GetStats().Evictions)
}

func TestManager_GetStatsAggregates(t *testing.T) {
	m := newTestManager(1000)
	require.NoError(t, m.AddMessage("u1", "s1", RoleUser, "a", nil))
	require.NoError(t, m.AddMessage("u1", "s1", RoleUser, "b", nil))
	require.NoError(t, m.AddMessage("u2", "s2", RoleUser, "c", nil))

	stats := m.GetStats()
	assert.Equal(t, 2, stats.TotalConversations)
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 2, stats.ActiveUsers)
}

func TestManager_ConcurrentDistinctKeysDoNotRace(t *testing.T) {
	m := newTestManager(100000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := string(rune('a' + i%26))
			_ = m.AddMessage("u1", sid, RoleUser, "hello", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, m.GetStats().TotalConversations)
}

func TestHeuristicTokenizer_MatchesSpecFormula(t *testing.T) {
	tok := NewHeuristicTokenizer()
	// ceil(len/4) + roleOverhead(4); "abcdefgh" is 8 chars -> 2 + 4 = 6.
	assert.Equal(t, 6, tok.CountTokens("abcdefgh"))
}
