package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qrouter/core/cache"
	"github.com/qrouter/core/config"
	"github.com/qrouter/core/convo"
	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/quantum"
	"github.com/qrouter/core/routing"
	"github.com/qrouter/core/stream"
)

// fakeRegistry is grounded on quantum/executor_test.go's fakeRegistry: a
// deterministic, call-counting stand-in for a real provider.Registry.
type fakeRegistry struct {
	mu    sync.Mutex
	calls map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{calls: make(map[string]int)}
}

func (f *fakeRegistry) callCount(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model]
}

func (f *fakeRegistry) GenerateCompletion(ctx context.Context, providerName, model string, messages []provider.Message, params provider.CompletionParams) (provider.CompletionResult, error) {
	f.mu.Lock()
	f.calls[model]++
	f.mu.Unlock()
	return provider.CompletionResult{Content: "answer from " + model, FinishReason: "stop"}, nil
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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&routing.ModelCapability{}))
	return db
}

func newTestCoordinator(t *testing.T, registry provider.Registry, capabilities ...*routing.ModelCapability) (*Coordinator, *fakeRegistry) {
	t.Helper()
	db := newTestDB(t)
	store := routing.NewCapabilityStore(db)
	for _, c := range capabilities {
		require.NoError(t, store.Upsert(context.Background(), c))
	}

	router := routing.NewRouter(store, 10, 0.1, 0.1)
	contextMgr := convo.NewManager(convo.NewHeuristicTokenizer(), 4000, time.Hour, zap.NewNop())
	resultCache := cache.NewResultCache[CachedResult](100, time.Minute, true)
	decisionCache := routing.NewDecisionCache(100, time.Minute, true)
	executor := quantum.NewExecutor(registry, quantum.Config{
		MaxWorkers:       4,
		QueueCapacity:    8,
		BranchTimeoutMS:  2000,
		ExecuteTimeoutMS: 5000,
		CancelGraceMS:    20,
		DefaultCollapse:  quantum.CollapseBestScore,
	}, 0, 0, zap.NewNop())
	t.Cleanup(executor.Close)

	coord := NewCoordinator(
		contextMgr, resultCache, decisionCache, store, router, executor,
		1, quantum.CollapseBestScore, time.Minute, config.DefaultRewardConfig(), zap.NewNop(),
	)

	reg, _ := registry.(*fakeRegistry)
	return coord, reg
}

func drainEvents(e *stream.Emitter) []stream.Event {
	var out []stream.Event
	for ev := range e.Events() {
		out = append(out, ev)
	}
	return out
}

func debugReq(taskID, prompt string) ExecuteRequest {
	return ExecuteRequest{
		TaskID:   taskID,
		TaskType: TaskDebug,
		Prompt:   prompt,
		Context:  RequestContext{UserID: "u1", SessionID: "s1", MaxTokens: 512},
	}
}

func TestCoordinator_DebugPromptRoutesAndCompletes(t *testing.T) {
	reg := newFakeRegistry()
	coord, _ := newTestCoordinator(t, reg, &routing.ModelCapability{
		ProviderCode: "openai", ModelName: "gpt-4o",
		ContextScoresJSON:  `{"debugging":0.9}`,
		PersonaWeightsJSON: `{"developer":1.0}`,
		HistoricalSuccess:  0.8, Enabled: true,
	})

	emitter, err := coord.Handle(context.Background(), debugReq("t1", "/dev fix this traceback and exception"))
	require.NoError(t, err)

	events := drainEvents(emitter)
	require.NotEmpty(t, events)
	assert.Equal(t, stream.KindStart, events[0].Kind)
	assert.Equal(t, routing.ContextDebugging, events[0].Start.RoutingDecision.ContextType)
	assert.GreaterOrEqual(t, events[0].Start.RoutingDecision.Confidence, 0.3)

	last := events[len(events)-1]
	assert.Equal(t, stream.KindComplete, last.Kind)
}

func TestCoordinator_ArchitectPersonaEventOrder(t *testing.T) {
	reg := newFakeRegistry()
	coord, _ := newTestCoordinator(t, reg, &routing.ModelCapability{
		ProviderCode: "openai", ModelName: "gpt-4o",
		ContextScoresJSON:  `{"architecture":0.9}`,
		PersonaWeightsJSON: `{"architect":1.0}`,
		HistoricalSuccess:  0.8, Enabled: true,
	})

	req := debugReq("t2", "/arch design a scalable system for microservices")
	req.TaskType = TaskArchitecture
	emitter, err := coord.Handle(context.Background(), req)
	require.NoError(t, err)

	events := drainEvents(emitter)
	var kinds []stream.Kind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}

	require.Contains(t, kinds, stream.KindStart)
	require.Contains(t, kinds, stream.KindResult)
	assert.Equal(t, stream.KindStart, kinds[0])
	assert.Equal(t, stream.KindComplete, kinds[len(kinds)-1])

	startIdx, resultIdx := indexOf(kinds, stream.KindStart), indexOf(kinds, stream.KindResult)
	assert.Less(t, startIdx, resultIdx)

	seen := map[stream.Step]bool{}
	for _, ev := range events {
		if ev.Kind == stream.KindProgress {
			seen[ev.Progress.Step] = true
		}
	}
	assert.True(t, seen[stream.StepRouting])
	assert.True(t, seen[stream.StepExecuting])
}

func indexOf(kinds []stream.Kind, target stream.Kind) int {
	for i, k := range kinds {
		if k == target {
			return i
		}
	}
	return -1
}

func TestCoordinator_ConcurrentIdenticalRequestsShareOneExecution(t *testing.T) {
	reg := newFakeRegistry()
	coord, _ := newTestCoordinator(t, reg, &routing.ModelCapability{
		ProviderCode: "openai", ModelName: "gpt-4o",
		ContextScoresJSON: `{"other":0.9}`, HistoricalSuccess: 0.8, Enabled: true,
	})

	const n = 5
	var wg sync.WaitGroup
	emitters := make([]*stream.Emitter, n)
	for i := 0; i < n; i++ {
		req := debugReq(fmt.Sprintf("t-%d", i), "describe the weather patterns")
		// Distinct user/session so AddMessage calls don't race with each
		// other, but the identical prompt+persona keeps the fingerprint
		// shared across all n requests.
		req.Context.UserID = fmt.Sprintf("u-%d", i)
		emitter, err := coord.Handle(context.Background(), req)
		require.NoError(t, err)
		emitters[i] = emitter
	}

	results := make([][]stream.Event, n)
	for i := range emitters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = drainEvents(emitters[i])
		}(i)
	}
	wg.Wait()

	for i, events := range results {
		require.NotEmpty(t, events, "caller %d got no events", i)
		assert.Equal(t, stream.KindComplete, events[len(events)-1].Kind)
	}

	assert.Equal(t, 1, reg.callCount("gpt-4o"))
}

func TestCoordinator_ValidationErrorSurfacesImmediately(t *testing.T) {
	reg := newFakeRegistry()
	coord, _ := newTestCoordinator(t, reg)

	_, err := coord.Handle(context.Background(), ExecuteRequest{})
	require.Error(t, err)
}

func TestCoordinator_RepeatedPromptHitsResultCache(t *testing.T) {
	reg := newFakeRegistry()
	coord, _ := newTestCoordinator(t, reg, &routing.ModelCapability{
		ProviderCode: "openai", ModelName: "gpt-4o",
		ContextScoresJSON: `{"other":0.9}`, HistoricalSuccess: 0.8, Enabled: true,
	})

	first, err := coord.Handle(context.Background(), debugReq("t1", "summarize this file"))
	require.NoError(t, err)
	drainEvents(first)

	second, err := coord.Handle(context.Background(), debugReq("t2", "summarize this file"))
	require.NoError(t, err)
	events := drainEvents(second)
	require.NotEmpty(t, events)
	assert.Equal(t, stream.KindComplete, events[len(events)-1].Kind)

	assert.Equal(t, 1, reg.callCount("gpt-4o"))
}
