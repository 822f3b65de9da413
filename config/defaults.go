// =============================================================================
// Quantum Routing Core Default Configuration
// =============================================================================
package config

// DefaultConfig returns the baseline configuration from spec §6/§4.
func DefaultConfig() *Config {
	return &Config{
		Cache:     DefaultCacheConfig(),
		Context:   DefaultContextConfig(),
		DQN:       DefaultDQNConfig(),
		Quantum:   DefaultQuantumConfig(),
		Router:    DefaultRouterConfig(),
		Reward:    DefaultRewardConfig(),
		Logging:   DefaultLoggingConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Database:  DefaultDatabaseConfig(),
	}
}

// DefaultDatabaseConfig returns default capability-manifest database
// configuration: a local sqlite file with a modest connection pool.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Path:                 "qrouter.db",
		MaxIdleConns:         5,
		MaxOpenConns:         20,
		ConnMaxLifetimeS:     3600,
		ConnMaxIdleTimeS:     600,
		HealthCheckIntervalS: 30,
	}
}

// DefaultCacheConfig returns default C1/C2 cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      true,
		ResultTTLS:   300,
		DecisionTTLS: 600,
		MaxEntries:   10000,
	}
}

// DefaultContextConfig returns default C3 context manager configuration.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxTokens:       8000,
		SessionTimeoutS: 3600,
	}
}

// DefaultDQNConfig returns default C7-C9 learned-routing configuration.
func DefaultDQNConfig() DQNConfig {
	return DQNConfig{
		StateSize:    21,
		ActionSize:   12,
		HiddenLayers: []int{64, 32},
		LR:           0.001,
		Gamma:        0.95,
		EpsStart:     1.0,
		EpsMin:       0.05,
		EpsDecay:     0.995,
		BatchSize:    32,
		TargetSync:   100,
		BufferSize:   10000,
		Priority: PriorityConfig{
			Enabled: true,
			Alpha:   0.6,
		},
		Seed: 42,
	}
}

// DefaultQuantumConfig returns default C10 executor configuration.
func DefaultQuantumConfig() QuantumConfig {
	return QuantumConfig{
		MaxWorkers:       8,
		QueueCapacity:    64,
		BranchTimeoutMS:  8000,
		ExecuteTimeoutMS: 15000,
		CancelGraceMS:    250,
		DefaultCollapse:  "best_score",
		VariationCount:   4,
	}
}

// DefaultRouterConfig returns default C6 router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		HistorySize:   500,
		CostWeight:    0.2,
		LatencyWeight: 0.2,
	}
}

// DefaultRewardConfig returns default C11 reward-shaping configuration.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		WQuality:     0.5,
		WSpeed:       0.3,
		WCost:        0.2,
		LatencyRefMS: 5000,
		CostRef:      0.05,
	}
}

// DefaultLoggingConfig returns default ambient logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns default ambient telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "qrouter-core",
		SampleRate:   0.1,
	}
}
