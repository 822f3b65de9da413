package quantum

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOutcome struct {
	delay        time.Duration
	content      string
	err          error
	finishReason string
}

type fakeRegistry struct {
	mu       sync.Mutex
	outcomes map[string]fakeOutcome // keyed by model
	calls    map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{outcomes: make(map[string]fakeOutcome), calls: make(map[string]int)}
}

func (f *fakeRegistry) set(model string, o fakeOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[model] = o
}

func (f *fakeRegistry) callCount(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model]
}

func (f *fakeRegistry) GenerateCompletion(ctx context.Context, providerName, model string, messages []provider.Message, params provider.CompletionParams) (provider.CompletionResult, error) {
	f.mu.Lock()
	f.calls[model]++
	o := f.outcomes[model]
	f.mu.Unlock()

	select {
	case <-time.After(o.delay):
	case <-ctx.Done():
		return provider.CompletionResult{}, ctx.Err()
	}
	if o.err != nil {
		return provider.CompletionResult{}, o.err
	}
	return provider.CompletionResult{Content: o.content, FinishReason: o.finishReason}, nil
}

func (f *fakeRegistry) ValidateModel(ctx context.Context, providerName, model string) (bool, error) {
	return true, nil
}
func (f *fakeRegistry) ListModels(ctx context.Context, providerName string) ([]string, error) {
	return nil, nil
}
func (f *fakeRegistry) HealthCheck(ctx context.Context, providerName string) (bool, error) {
	return true, nil
}

func testVariation(id, model string) Variation {
	return Variation{ID: id, Provider: "fake", Model: model, Strategy: routing.StrategyBalanced}
}

func newTestExecutor(registry provider.Registry, collapseDefault CollapseStrategy) *Executor {
	return NewExecutor(registry, Config{
		MaxWorkers:       8,
		QueueCapacity:    16,
		BranchTimeoutMS:  2000,
		ExecuteTimeoutMS: 5000,
		CancelGraceMS:    50,
		DefaultCollapse:  collapseDefault,
		CostLambda:       0.1,
		LatencyMu:        0.1,
	}, 0, 0, zap.NewNop())
}

func TestExecutor_FirstSuccessCollapsesToFastestWinner(t *testing.T) {
	reg := newFakeRegistry()
	reg.set("m1", fakeOutcome{delay: 500 * time.Millisecond, content: "slow1", finishReason: "stop"})
	reg.set("m2", fakeOutcome{delay: 50 * time.Millisecond, content: "fast", finishReason: "stop"})
	reg.set("m3", fakeOutcome{delay: 500 * time.Millisecond, content: "slow2", finishReason: "stop"})
	reg.set("m4", fakeOutcome{delay: 500 * time.Millisecond, content: "slow3", finishReason: "stop"})

	exec := newTestExecutor(reg, CollapseFirstSuccess)
	defer exec.Close()

	variations := []Variation{
		testVariation("b1", "m1"),
		testVariation("b2", "m2"),
		testVariation("b3", "m3"),
		testVariation("b4", "m4"),
	}

	start := time.Now()
	result := exec.Execute(context.Background(), variations, CollapseFirstSuccess, nil)
	elapsed := time.Since(start)

	require.True(t, result.Success)
	require.NotNil(t, result.Winner)
	assert.Equal(t, "b2", result.Winner.VariationID)
	assert.Equal(t, "fast", result.Winner.Content)
	assert.Less(t, elapsed, 150*time.Millisecond)

	statuses := map[string]Status{}
	for _, b := range result.Branches {
		statuses[b.VariationID] = b.Status
	}
	assert.Equal(t, StatusSucceeded, statuses["b2"])
	for _, id := range []string{"b1", "b3", "b4"} {
		assert.Contains(t, []Status{StatusTimeout, StatusCancelled}, statuses[id])
	}
}

func TestExecutor_BestScorePicksHighestScoringSuccess(t *testing.T) {
	reg := newFakeRegistry()
	reg.set("cheap", fakeOutcome{delay: 10 * time.Millisecond, content: "cheap-result", finishReason: "stop"})
	reg.set("truncated", fakeOutcome{delay: 10 * time.Millisecond, content: "truncated-result", finishReason: "length"})

	exec := newTestExecutor(reg, CollapseBestScore)
	defer exec.Close()

	variations := []Variation{
		testVariation("a", "cheap"),
		testVariation("b", "truncated"),
	}

	result := exec.Execute(context.Background(), variations, "", nil)
	require.True(t, result.Success)
	require.NotNil(t, result.Winner)
	assert.Equal(t, "a", result.Winner.VariationID) // "stop" quality(1.0) beats "length"(0.7)
}

func TestExecutor_AllBranchesFailedReturnsUnsuccessful(t *testing.T) {
	reg := newFakeRegistry()
	reg.set("bad", fakeOutcome{delay: 5 * time.Millisecond, err: assertError("boom")})

	exec := newTestExecutor(reg, CollapseBestScore)
	defer exec.Close()

	result := exec.Execute(context.Background(), []Variation{testVariation("a", "bad")}, "", nil)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

func TestExecutor_BranchTimeoutRecordedAsTimeout(t *testing.T) {
	reg := newFakeRegistry()
	reg.set("slow", fakeOutcome{delay: time.Second, content: "too-slow", finishReason: "stop"})

	exec := NewExecutor(reg, Config{
		MaxWorkers: 4, QueueCapacity: 8, BranchTimeoutMS: 20, ExecuteTimeoutMS: 1000,
		CancelGraceMS: 20, DefaultCollapse: CollapseBestScore,
	}, 0, 0, zap.NewNop())
	defer exec.Close()

	result := exec.Execute(context.Background(), []Variation{testVariation("a", "slow")}, "", nil)
	assert.False(t, result.Success)
	require.Len(t, result.Branches, 1)
	assert.Equal(t, StatusTimeout, result.Branches[0].Status)
}

func TestExecutor_WeightedConsensusFallsBackToBestScoreWithoutQuorum(t *testing.T) {
	reg := newFakeRegistry()
	reg.set("a", fakeOutcome{delay: 5 * time.Millisecond, content: "apple", finishReason: "stop"})
	reg.set("b", fakeOutcome{delay: 5 * time.Millisecond, content: "banana", finishReason: "stop"})

	exec := newTestExecutor(reg, CollapseWeightedConsensus)
	defer exec.Close()

	noAgreement := func(x, y BranchResult) float64 { return 0 }
	result := exec.Execute(context.Background(), []Variation{testVariation("a", "a"), testVariation("b", "b")}, CollapseWeightedConsensus, noAgreement)
	require.True(t, result.Success) // falls back to best-score rather than failing outright
	require.NotNil(t, result.Winner)
}

type assertError string

func (e assertError) Error() string { return string(e) }
