// Package corectx assembles every component into a single object graph
// at startup, per the design note that the only "global" state in this
// codebase is the root of that graph (replacing the teacher's
// module-level CACHE_REGISTRY/PROVIDER_REGISTRY/model-manifest
// singletons).
//
// Grounded on cmd/agentflow/main.go's config-load -> logger-init ->
// telemetry-init -> db-open -> server-construct sequence, generalized
// from "build an HTTP server" to "build a Coordinator".
package corectx

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/qrouter/core/cache"
	"github.com/qrouter/core/config"
	"github.com/qrouter/core/convo"
	"github.com/qrouter/core/dqn"
	"github.com/qrouter/core/internal/database"
	"github.com/qrouter/core/internal/metrics"
	"github.com/qrouter/core/internal/telemetry"
	"github.com/qrouter/core/orchestrator"
	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/quantum"
	"github.com/qrouter/core/replay"
	"github.com/qrouter/core/routing"
)

// CoreContext holds every wired component. Nothing outside it is
// global: a process can construct more than one (e.g. in tests) without
// cross-talk.
type CoreContext struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *database.PoolManager
	Telemetry    *telemetry.Providers
	Metrics      *metrics.Collector
	Capabilities *routing.CapabilityStore
	Router       *routing.Router
	ContextMgr   *convo.Manager
	Agent        *dqn.Agent // nil when DQN-assisted routing is disabled
	Executor     *quantum.Executor
	Coordinator  *orchestrator.Coordinator
}

// Option configures optional construction behavior.
type Option func(*buildState)

type buildState struct {
	agentEnabled bool
	agentSeed    int64
}

// WithAgent enables the DQN Routing Agent (C9) alongside the router.
func WithAgent() Option {
	return func(b *buildState) { b.agentEnabled = true }
}

// New opens the capability manifest database, runs its migrations, and
// wires every component from cfg into a ready-to-use CoreContext. registry
// is the caller-supplied provider.Registry (no concrete provider SDK is
// built into this module — see SPEC_FULL.md's Non-goals).
func New(cfg *config.Config, registry provider.Registry, opts ...Option) (*CoreContext, error) {
	b := &buildState{}
	for _, opt := range opts {
		opt(b)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing with noop providers", zap.Error(err))
		providers = &telemetry.Providers{}
	}

	collector := metrics.NewCollector("qrouter", logger)

	if err := routing.MigrateCapabilityManifest(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("migrate capability manifest: %w", err)
	}

	gormDB, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open capability manifest db: %w", err)
	}
	pool, err := database.NewPoolManager(gormDB, database.PoolConfig{
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		ConnMaxLifetime:     time.Duration(cfg.Database.ConnMaxLifetimeS) * time.Second,
		ConnMaxIdleTime:     time.Duration(cfg.Database.ConnMaxIdleTimeS) * time.Second,
		HealthCheckInterval: time.Duration(cfg.Database.HealthCheckIntervalS) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build db pool: %w", err)
	}

	capabilities := routing.NewCapabilityStore(pool.DB())
	router := routing.NewRouter(capabilities, cfg.Router.HistorySize, cfg.Router.CostWeight, cfg.Router.LatencyWeight)

	contextMgr := convo.NewManager(
		convo.NewHeuristicTokenizer(),
		cfg.Context.MaxTokens,
		time.Duration(cfg.Context.SessionTimeoutS)*time.Second,
		logger,
	)

	resultCache := cache.NewResultCache[orchestrator.CachedResult](cfg.Cache.MaxEntries, time.Duration(cfg.Cache.ResultTTLS)*time.Second, cfg.Cache.Enabled)
	decisionCache := routing.NewDecisionCache(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.DecisionTTLS)*time.Second, cfg.Cache.Enabled)

	executor := quantum.NewExecutor(registry, quantum.Config{
		MaxWorkers:       cfg.Quantum.MaxWorkers,
		QueueCapacity:    cfg.Quantum.QueueCapacity,
		BranchTimeoutMS:  cfg.Quantum.BranchTimeoutMS,
		ExecuteTimeoutMS: cfg.Quantum.ExecuteTimeoutMS,
		CancelGraceMS:    cfg.Quantum.CancelGraceMS,
		DefaultCollapse:  quantum.CollapseStrategy(cfg.Quantum.DefaultCollapse),
	}, 0, 0, logger, quantum.WithMetrics(collector))

	var agent *dqn.Agent
	coordOpts := []orchestrator.Option{
		orchestrator.WithMetrics(collector),
		orchestrator.WithTracer(otel.Tracer("github.com/qrouter/core/orchestrator")),
	}
	if b.agentEnabled {
		agent = buildAgent(cfg.DQN, collector)
		coordOpts = append(coordOpts, orchestrator.WithAgent(agent, 0.7))
	}

	coordinator := orchestrator.NewCoordinator(
		contextMgr,
		resultCache,
		decisionCache,
		capabilities,
		router,
		executor,
		cfg.Quantum.VariationCount,
		quantum.CollapseStrategy(cfg.Quantum.DefaultCollapse),
		time.Duration(cfg.Cache.ResultTTLS)*time.Second,
		cfg.Reward,
		logger,
		coordOpts...,
	)

	return &CoreContext{
		Config:       cfg,
		Logger:       logger,
		DB:           pool,
		Telemetry:    providers,
		Metrics:      collector,
		Capabilities: capabilities,
		Router:       router,
		ContextMgr:   contextMgr,
		Agent:        agent,
		Executor:     executor,
		Coordinator:  coordinator,
	}, nil
}

// buildLogger constructs the ambient zap logger, grounded on the
// teacher's cmd entrypoint's initLogger: console encoding in
// development, JSON with ISO8601 timestamps otherwise.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	var encoderCfg zapcore.EncoderConfig
	encoding := cfg.Format
	if encoding == "console" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoding = "json"
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zapCfg.Build(opts...)
}

func buildAgent(cfg config.DQNConfig, collector *metrics.Collector) *dqn.Agent {
	online := dqn.NewDenseBackend(cfg.StateSize, cfg.ActionSize, cfg.HiddenLayers, cfg.LR, 1.0, cfg.Seed)
	target := dqn.NewDenseBackend(cfg.StateSize, cfg.ActionSize, cfg.HiddenLayers, cfg.LR, 1.0, cfg.Seed)
	buffer := replay.New(cfg.BufferSize, cfg.Priority.Enabled, cfg.Priority.Alpha, cfg.Seed)
	table := dqn.DefaultActionTable()

	return dqn.NewAgent(online, target, table, buffer, dqn.AgentConfig{
		Gamma:              cfg.Gamma,
		EpsStart:           cfg.EpsStart,
		EpsMin:             cfg.EpsMin,
		EpsDecay:           cfg.EpsDecay,
		BatchSize:          cfg.BatchSize,
		TargetSyncInterval: cfg.TargetSync,
		Seed:               cfg.Seed,
	}, dqn.WithMetrics(collector))
}

// Close releases the executor's worker pool and the database pool. It does
// not shut down the telemetry providers.
func (c *CoreContext) Close() error {
	c.Executor.Close()
	if err := c.DB.Close(); err != nil {
		return err
	}
	return nil
}
