// =============================================================================
// Quantum Routing Core Configuration Loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable overlay.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("QROUTER").
//	    Load()
//
// Priority: defaults -> YAML file -> environment variables
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Core configuration structure
// =============================================================================

// Config is the complete recognized configuration surface (spec §6).
type Config struct {
	Cache   CacheConfig   `yaml:"cache" env:"CACHE"`
	Context ContextConfig `yaml:"context" env:"CONTEXT"`
	DQN     DQNConfig     `yaml:"dqn" env:"DQN"`
	Quantum QuantumConfig `yaml:"quantum" env:"QUANTUM"`
	Router  RouterConfig  `yaml:"router" env:"ROUTER"`
	Reward  RewardConfig  `yaml:"reward" env:"REWARD"`

	// Ambient blocks, carried regardless of the core's Non-goals.
	Logging   LoggingConfig   `yaml:"logging" env:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
}

// DatabaseConfig configures the sqlite-backed capability manifest store
// (C6) and its connection pool.
type DatabaseConfig struct {
	Path                 string `yaml:"path" env:"PATH"`
	MaxIdleConns         int    `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	MaxOpenConns         int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	ConnMaxLifetimeS     int    `yaml:"conn_max_lifetime_s" env:"CONN_MAX_LIFETIME_S"`
	ConnMaxIdleTimeS     int    `yaml:"conn_max_idle_time_s" env:"CONN_MAX_IDLE_TIME_S"`
	HealthCheckIntervalS int    `yaml:"health_check_interval_s" env:"HEALTH_CHECK_INTERVAL_S"`
}

// CacheConfig configures the C1/C2 TTL+LRU caches.
type CacheConfig struct {
	Enabled      bool `yaml:"enabled" env:"ENABLED"`
	ResultTTLS   int  `yaml:"result_ttl_s" env:"RESULT_TTL_S"`
	DecisionTTLS int  `yaml:"decision_ttl_s" env:"DECISION_TTL_S"`
	MaxEntries   int  `yaml:"max_entries" env:"MAX_ENTRIES"`
}

// ContextConfig configures the C3 Context Manager.
type ContextConfig struct {
	MaxTokens       int `yaml:"max_tokens" env:"MAX_TOKENS"`
	SessionTimeoutS int `yaml:"session_timeout_s" env:"SESSION_TIMEOUT_S"`
}

// PriorityConfig configures C7 priority-sampling behavior.
type PriorityConfig struct {
	Enabled bool    `yaml:"enabled" env:"ENABLED"`
	Alpha   float64 `yaml:"alpha" env:"ALPHA"`
}

// DQNConfig configures the C7/C8/C9 learned-routing subsystem.
type DQNConfig struct {
	StateSize    int            `yaml:"state_size" env:"STATE_SIZE"`
	ActionSize   int            `yaml:"action_size" env:"ACTION_SIZE"`
	HiddenLayers []int          `yaml:"hidden_layers" env:"HIDDEN_LAYERS"`
	LR           float64        `yaml:"lr" env:"LR"`
	Gamma        float64        `yaml:"gamma" env:"GAMMA"`
	EpsStart     float64        `yaml:"eps_start" env:"EPS_START"`
	EpsMin       float64        `yaml:"eps_min" env:"EPS_MIN"`
	EpsDecay     float64        `yaml:"eps_decay" env:"EPS_DECAY"`
	BatchSize    int            `yaml:"batch_size" env:"BATCH_SIZE"`
	TargetSync   int            `yaml:"target_sync" env:"TARGET_SYNC"`
	BufferSize   int            `yaml:"buffer_size" env:"BUFFER_SIZE"`
	Priority     PriorityConfig `yaml:"priority" env:"PRIORITY"`
	Seed         int64          `yaml:"seed" env:"SEED"`
}

// QuantumConfig configures the C10 Quantum Executor.
type QuantumConfig struct {
	MaxWorkers       int    `yaml:"max_workers" env:"MAX_WORKERS"`
	QueueCapacity    int    `yaml:"queue_capacity" env:"QUEUE_CAPACITY"`
	BranchTimeoutMS  int    `yaml:"branch_timeout_ms" env:"BRANCH_TIMEOUT_MS"`
	ExecuteTimeoutMS int    `yaml:"execute_timeout_ms" env:"EXECUTE_TIMEOUT_MS"`
	CancelGraceMS    int    `yaml:"cancel_grace_ms" env:"CANCEL_GRACE_MS"`
	DefaultCollapse  string `yaml:"default_collapse" env:"DEFAULT_COLLAPSE"`
	VariationCount   int    `yaml:"variation_count" env:"VARIATION_COUNT"`
}

// RouterConfig configures the C6 Advanced Router.
type RouterConfig struct {
	HistorySize   int     `yaml:"history_size" env:"HISTORY_SIZE"`
	CostWeight    float64 `yaml:"cost_weight" env:"COST_WEIGHT"`
	LatencyWeight float64 `yaml:"latency_weight" env:"LATENCY_WEIGHT"`
}

// RewardConfig configures C11's post-execution reward computation.
// Open Question decision (see DESIGN.md): weights and reference constants
// are first-class, hot-reloadable config rather than compiled-in constants.
type RewardConfig struct {
	WQuality     float64 `yaml:"w_quality" env:"W_QUALITY"`
	WSpeed       float64 `yaml:"w_speed" env:"W_SPEED"`
	WCost        float64 `yaml:"w_cost" env:"W_COST"`
	LatencyRefMS float64 `yaml:"latency_ref_ms" env:"LATENCY_REF_MS"`
	CostRef      float64 `yaml:"cost_ref" env:"COST_REF"`
}

// LoggingConfig configures the ambient zap logger.
type LoggingConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the ambient metrics/tracing stack.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads configuration via a builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "QROUTER",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads configuration: defaults -> YAML file -> environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch field.Type().Elem().Kind() {
		case reflect.String:
			field.Set(reflect.ValueOf(parts))
		case reflect.Int:
			ints := make([]int, len(parts))
			for i, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil {
					return err
				}
				ints[i] = n
			}
			field.Set(reflect.ValueOf(ints))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads configuration, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, "cache.max_entries must be positive")
	}
	if c.Context.MaxTokens <= 0 {
		errs = append(errs, "context.max_tokens must be positive")
	}
	if c.DQN.StateSize <= 0 {
		errs = append(errs, "dqn.state_size must be positive")
	}
	if c.DQN.ActionSize <= 0 {
		errs = append(errs, "dqn.action_size must be positive")
	}
	if c.DQN.EpsStart < c.DQN.EpsMin {
		errs = append(errs, "dqn.eps_start must be >= dqn.eps_min")
	}
	if c.DQN.Priority.Enabled && c.DQN.Priority.Alpha < 0 {
		errs = append(errs, "dqn.priority.alpha must be non-negative")
	}
	if c.Quantum.MaxWorkers <= 0 {
		errs = append(errs, "quantum.max_workers must be positive")
	}
	if c.Quantum.QueueCapacity < 0 {
		errs = append(errs, "quantum.queue_capacity must be non-negative")
	}
	if c.Quantum.VariationCount <= 0 {
		errs = append(errs, "quantum.variation_count must be positive")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path must be set")
	}
	sum := c.Reward.WQuality + c.Reward.WSpeed + c.Reward.WCost
	if sum <= 0 {
		errs = append(errs, "reward weights must sum to a positive value")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
