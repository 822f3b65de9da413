// Package orchestrator implements the Orchestration Coordinator (C11):
// the public entry point that loads conversation context, consults the
// result/decision caches, asks the router (and optionally the DQN agent)
// for a routing decision, fans execution out to the Quantum Executor,
// records the outcome as an experience, and streams events back to the
// caller.
//
// Grounded on llm/router.go's dispatch -> select -> execute -> respond
// shape and llm/provider.go's Stream(ctx, req) (<-chan StreamChunk,
// error) channel pattern, generalized to the full C11 state machine
// (spec §4.11).
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/qrouter/core/cache"
	"github.com/qrouter/core/config"
	"github.com/qrouter/core/convo"
	"github.com/qrouter/core/dqn"
	"github.com/qrouter/core/internal/metrics"
	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/quantum"
	"github.com/qrouter/core/routing"
	"github.com/qrouter/core/stream"
	"github.com/qrouter/core/types"
)

// CachedResult is the ResultCache's value type: everything needed to
// replay a prior answer without re-executing.
type CachedResult struct {
	Content    string
	Usage      provider.Usage
	Winner     stream.WinnerRef
	Confidence float64
	Decision   routing.Decision
}

// buildOutcome is what one singleflight.Do call returns: shared verbatim
// across every concurrent caller with the same fingerprint (spec §4.11's
// "at-most-one concurrent build per fingerprint").
type buildOutcome struct {
	decision routing.Decision
	branches []quantum.BranchResult
	result   CachedResult
}

// Coordinator is the Orchestration Coordinator (C11).
type Coordinator struct {
	contextMgr    *convo.Manager
	resultCache   *cache.ResultCache[CachedResult]
	decisionCache *routing.DecisionCache
	capabilities  *routing.CapabilityStore
	router        *routing.Router
	agent         *dqn.Agent // nil disables learned routing; router decision used as-is
	executor      *quantum.Executor

	agentConfidenceThreshold float64
	variationCount           int
	defaultCollapse          quantum.CollapseStrategy
	resultTTL                time.Duration
	rewardCfg                config.RewardConfig

	sf      singleflight.Group
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// Option configures optional Coordinator behavior at construction.
type Option func(*Coordinator)

// WithAgent enables DQN-assisted routing: confidenceThreshold is the
// router-confidence ceiling below which the agent's suggestion is
// preferred over the router's own top pick (DESIGN.md Open Question
// decision #1).
func WithAgent(agent *dqn.Agent, confidenceThreshold float64) Option {
	return func(c *Coordinator) {
		c.agent = agent
		c.agentConfidenceThreshold = confidenceThreshold
	}
}

// WithMetrics attaches a Collector that records request outcomes and
// cache hit/miss counts.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTracer attaches a Tracer that wraps every Handle call in a span,
// so downstream context-carrying calls (provider completions, DB reads)
// nest under it via normal OTel context propagation.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = tracer }
}

// NewCoordinator wires every component C11 depends on into a
// ready-to-use coordinator.
func NewCoordinator(
	contextMgr *convo.Manager,
	resultCache *cache.ResultCache[CachedResult],
	decisionCache *routing.DecisionCache,
	capabilities *routing.CapabilityStore,
	router *routing.Router,
	executor *quantum.Executor,
	variationCount int,
	defaultCollapse quantum.CollapseStrategy,
	resultTTL time.Duration,
	rewardCfg config.RewardConfig,
	logger *zap.Logger,
	opts ...Option,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		contextMgr:      contextMgr,
		resultCache:     resultCache,
		decisionCache:   decisionCache,
		capabilities:    capabilities,
		router:          router,
		executor:        executor,
		variationCount:  variationCount,
		defaultCollapse: defaultCollapse,
		resultTTL:       resultTTL,
		rewardCfg:       rewardCfg,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle implements C11's public entry: handle(request) -> ResponseStream.
// It validates the request, then runs the state machine on a background
// goroutine, streaming events back over the returned Emitter. Validation
// failures are returned synchronously rather than as a stream event,
// since no stream has been opened yet at that point (spec §7: a
// ValidationError is "surfaced to caller immediately").
func (c *Coordinator) Handle(ctx context.Context, req ExecuteRequest) (*stream.Emitter, error) {
	if req.TaskID == "" {
		req.TaskID = uuid.New().String()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	emitter := stream.NewEmitter(32)
	go c.run(ctx, req, emitter)
	return emitter, nil
}

func (c *Coordinator) run(ctx context.Context, req ExecuteRequest, emitter *stream.Emitter) {
	start := time.Now()
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "orchestrator.handle", trace.WithAttributes(
			attribute.String("task_id", req.TaskID),
			attribute.String("task_type", string(req.TaskType)),
		))
		defer span.End()
	}

	persona, strippedPrompt, _ := routing.ParsePersonaCommand(req.Prompt, req.PersonaConfig.Persona)

	if err := c.contextMgr.AddMessage(req.Context.UserID, req.Context.SessionID, convo.RoleUser, req.Prompt, nil); err != nil {
		c.fail(ctx, emitter, err)
		c.recordOutcome(req, start, "failed")
		return
	}

	if cached, ok := c.resultCache.Get(strippedPrompt, persona); ok {
		c.recordCache("result", true)
		c.streamCached(ctx, req, emitter, cached)
		c.recordOutcome(req, start, "cache_hit")
		return
	}
	c.recordCache("result", false)

	fingerprint := cache.Fingerprint(strippedPrompt, persona)
	v, err, _ := c.sf.Do(fingerprint, func() (any, error) {
		return c.build(ctx, req, strippedPrompt, persona)
	})
	if err != nil {
		c.fail(ctx, emitter, err)
		c.recordOutcome(req, start, "failed")
		return
	}

	outcome := v.(buildOutcome)
	c.streamBuilt(req, emitter, outcome)
	c.recordOutcome(req, start, "completed")
}

func (c *Coordinator) recordOutcome(req ExecuteRequest, start time.Time, status string) {
	if c.metrics != nil {
		c.metrics.RecordRequest(string(req.TaskType), status, time.Since(start))
	}
}

func (c *Coordinator) recordCache(cacheName string, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordCacheHit(cacheName)
	} else {
		c.metrics.RecordCacheMiss(cacheName)
	}
}

// streamCached replays a CACHE_HIT result without touching routing or
// execution (spec §4.11 transition 2).
func (c *Coordinator) streamCached(ctx context.Context, req ExecuteRequest, emitter *stream.Emitter, cached CachedResult) {
	emitter.Start(req.TaskID, cached.Decision)
	emitter.Progress(stream.StepPersisting, 100)
	emitter.Result(cached.Content, cached.Usage, cached.Winner, cached.Confidence)
	if err := c.contextMgr.AddMessage(req.Context.UserID, req.Context.SessionID, convo.RoleAssistant, cached.Content, nil); err != nil {
		c.fail(ctx, emitter, err)
		return
	}
	emitter.Complete(req.TaskID)
}

// streamBuilt replays one singleflight-shared execution's events to this
// caller's own stream. Every concurrent caller for the same fingerprint
// calls this independently over the one shared outcome, so each gets a
// complete, correctly ordered stream without a second provider call.
func (c *Coordinator) streamBuilt(req ExecuteRequest, emitter *stream.Emitter, outcome buildOutcome) {
	emitter.Start(req.TaskID, outcome.decision)
	emitter.Progress(stream.StepRouting, 25)
	emitter.Progress(stream.StepExecuting, 50)
	for _, b := range outcome.branches {
		emitter.Branch(b)
	}
	emitter.Progress(stream.StepCollapsing, 75)
	emitter.Progress(stream.StepPersisting, 90)
	emitter.Result(outcome.result.Content, outcome.result.Usage, outcome.result.Winner, outcome.result.Confidence)
	emitter.Complete(req.TaskID)
}

func (c *Coordinator) fail(ctx context.Context, emitter *stream.Emitter, err error) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	if typed, ok := err.(*types.Error); ok {
		emitter.Fail(string(typed.Code), typed.Message, typed.Retryable)
		return
	}
	emitter.Fail(string(types.ErrInternal), err.Error(), false)
}

// build runs ROUTED -> EXECUTING -> COLLAPSED -> PERSISTED (spec §4.11
// transitions 3-6). It never touches the stream directly: its result is
// shared verbatim across every concurrent caller via singleflight.
func (c *Coordinator) build(ctx context.Context, req ExecuteRequest, strippedPrompt, persona string) (buildOutcome, error) {
	decision, candidates, err := c.route(ctx, req, strippedPrompt, persona)
	if err != nil {
		return buildOutcome{}, err
	}

	action, state, actionIndex, usedAgent := c.chooseAction(decision, candidates)

	history := c.contextMgr.GetConversationContext(req.Context.UserID, req.Context.SessionID, true)
	messages := toProviderMessages(history)
	params := provider.CompletionParams{
		MaxTokens:   req.Context.MaxTokens,
		Temperature: req.Context.Temperature,
		Timeout:     time.Duration(req.Context.TimeoutMS) * time.Millisecond,
	}

	variations := buildVariations(action, candidates, c.variationCount, messages, params)
	collapse := c.defaultCollapse
	if req.OrchestrationConfig.CollapseStrategy != "" {
		collapse = quantum.CollapseStrategy(req.OrchestrationConfig.CollapseStrategy)
	}

	execResult := c.executor.Execute(ctx, variations, collapse, nil)
	if !execResult.Success {
		return buildOutcome{branches: execResult.Branches}, execResult.Error
	}
	winner := *execResult.Winner

	reward := computeReward(c.rewardCfg, winner.Quality, winner.LatencyMS, winner.Cost, winner.Err != nil)
	if usedAgent {
		c.agent.Remember(state, actionIndex, reward, state, true)
		c.agent.DecayEpsilon()
	}

	cached := CachedResult{
		Content:    winner.Content,
		Usage:      winner.Usage,
		Winner:     stream.WinnerRef{Provider: winner.Provider, Model: winner.Model, Strategy: winner.Strategy},
		Confidence: decision.Confidence,
		Decision:   decision,
	}
	c.resultCache.Set(strippedPrompt, persona, cached, c.resultTTL)
	c.decisionCache.Set(strippedPrompt, string(decision.ContextType), string(decision.ComplexityLevel), decision, 0)
	if err := c.contextMgr.AddMessage(req.Context.UserID, req.Context.SessionID, convo.RoleAssistant, winner.Content, nil); err != nil {
		return buildOutcome{}, err
	}

	return buildOutcome{decision: decision, branches: execResult.Branches, result: cached}, nil
}

// route implements transition 3 (ROUTED): consult the decision cache;
// on a miss, call the router directly.
func (c *Coordinator) route(ctx context.Context, req ExecuteRequest, strippedPrompt, persona string) (routing.Decision, []routing.ModelCapability, error) {
	candidates, err := c.capabilities.Candidates(ctx)
	if err != nil {
		return routing.Decision{}, nil, types.NewInternalError("loading capability manifest", err)
	}

	contextType := classifyContextType(strippedPrompt)
	_, complexityLevel := routing.AnalyzeComplexity(routing.ComplexityInput{
		Prompt:        strippedPrompt,
		FileCount:     len(req.Files),
		PriorMessages: len(c.contextMgr.GetConversationContext(req.Context.UserID, req.Context.SessionID, false)),
	})
	if cached, ok := c.decisionCache.Get(strippedPrompt, string(contextType), string(complexityLevel)); ok {
		c.recordCache("decision", true)
		return cached, candidates, nil
	}
	c.recordCache("decision", false)

	decision, err := c.router.Route(ctx, routing.Request{
		Prompt:         req.Prompt,
		DefaultPersona: persona,
		FileCount:      len(req.Files),
		PriorMessages:  len(c.contextMgr.GetConversationContext(req.Context.UserID, req.Context.SessionID, false)),
	})
	if err != nil {
		return routing.Decision{}, nil, err
	}
	return decision, candidates, nil
}

// chooseAction implements the DQN-suggests/router-validates policy
// (DESIGN.md Open Question decision #1). Falls back to the router's
// decision whenever the agent is disabled, its suggestion fails
// eligibility, or the router was already confident.
func (c *Coordinator) chooseAction(decision routing.Decision, candidates []routing.ModelCapability) (action routing.RoutingAction, state routing.RoutingState, actionIndex int, usedAgent bool) {
	routerAction := routing.RoutingAction{Provider: decision.Provider, Model: decision.Model, Strategy: routing.StrategyBalanced}
	if c.agent == nil {
		return routerAction, routing.RoutingState{}, 0, false
	}

	state = buildState(decision, candidates, 0.5)
	proposed, idx := c.agent.Act(state)

	if decision.Confidence >= c.agentConfidenceThreshold {
		return routerAction, state, idx, true // low-value suggestion to remember against, but router's pick wins
	}
	resolved, ok := resolveAction(candidates, proposed)
	if !ok {
		return routerAction, state, idx, true
	}
	return resolved, state, idx, true
}

func toProviderMessages(history []convo.Message) []provider.Message {
	out := make([]provider.Message, 0, len(history))
	for _, m := range history {
		out = append(out, provider.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

