package routing

import (
	"context"
	"testing"

	"github.com/qrouter/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, historySize int, costWeight, latencyWeight float64, capabilities ...*ModelCapability) *Router {
	t.Helper()
	db := newTestDB(t)
	store := NewCapabilityStore(db)
	for _, c := range capabilities {
		require.NoError(t, store.Upsert(context.Background(), c))
	}
	return NewRouter(store, historySize, costWeight, latencyWeight)
}

func TestRouter_Route_HappyPath(t *testing.T) {
	r := newTestRouter(t, 10, 0.1, 0.1,
		&ModelCapability{
			ProviderCode: "openai", ModelName: "gpt-4o",
			ContextScoresJSON:  `{"debugging":0.9}`,
			PersonaWeightsJSON: `{"developer":1.0}`,
			CostPer1KTokens:    5, AvgLatencyMs: 500, HistoricalSuccess: 0.8, Enabled: true,
		},
	)

	decision, err := r.Route(context.Background(), Request{
		Prompt:         "/dev Fix this error: TypeError traceback",
		DefaultPersona: "assistant",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", decision.Provider)
	assert.Equal(t, "gpt-4o", decision.Model)
	assert.Equal(t, "developer", decision.Persona)
	assert.Equal(t, ContextDebugging, decision.ContextType)
	assert.Equal(t, 1.0, decision.Confidence)
	assert.NotEmpty(t, decision.Reasoning)
	assert.Equal(t, "dev", decision.Metadata["slash_command"])

	assert.Len(t, r.History(), 1)
}

func TestRouter_Route_NoCandidatesReturnsNoEligibleModelError(t *testing.T) {
	r := newTestRouter(t, 10, 0.1, 0.1)

	_, err := r.Route(context.Background(), Request{Prompt: "hello", DefaultPersona: "developer"})
	require.Error(t, err)
	var typedErr *types.Error
	require.ErrorAs(t, err, &typedErr)
	assert.Equal(t, types.ErrNoEligibleModel, typedErr.Code)
}

func TestRouter_Route_SingleCandidateHasConfidenceOne(t *testing.T) {
	r := newTestRouter(t, 10, 0.1, 0.1,
		&ModelCapability{ProviderCode: "openai", ModelName: "gpt-4o", Enabled: true},
	)

	decision, err := r.Route(context.Background(), Request{Prompt: "hello", DefaultPersona: "developer"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, decision.Confidence)
}

func TestRouter_Route_TieBreaksOnCostThenAlphabetical(t *testing.T) {
	// With both penalty weights at 0 every candidate scores 0, so the
	// tie-breaks decide: "a" has the lowest cost and wins; "b" and "c" also
	// tie on cost and are ordered alphabetically behind it.
	r := newTestRouter(t, 10, 0.0, 0.0,
		&ModelCapability{ProviderCode: "p", ModelName: "c", CostPer1KTokens: 1, Enabled: true},
		&ModelCapability{ProviderCode: "p", ModelName: "b", CostPer1KTokens: 1, Enabled: true},
		&ModelCapability{ProviderCode: "p", ModelName: "a", CostPer1KTokens: 0, Enabled: true},
	)

	decision, err := r.Route(context.Background(), Request{Prompt: "hello", DefaultPersona: "developer"})
	require.NoError(t, err)
	assert.Equal(t, "a", decision.Model)
}

func TestRouter_Route_HistoryIsBounded(t *testing.T) {
	r := newTestRouter(t, 2, 0.1, 0.1,
		&ModelCapability{ProviderCode: "p", ModelName: "m", Enabled: true},
	)

	for i := 0; i < 5; i++ {
		_, err := r.Route(context.Background(), Request{Prompt: "hello", DefaultPersona: "developer"})
		require.NoError(t, err)
	}

	assert.Len(t, r.History(), 2)
}

func TestClassifyContextType_PicksBestMatch(t *testing.T) {
	assert.Equal(t, ContextDebugging, classifyContextType("I got a traceback with a stack trace and an exception"))
	assert.Equal(t, ContextTesting, classifyContextType("write a unit test with coverage and a mock"))
	assert.Equal(t, ContextOther, classifyContextType("what's the weather like today"))
}
