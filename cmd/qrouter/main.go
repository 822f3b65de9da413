// Command qrouter is the operator CLI for the routing core: it loads and
// validates configuration, runs the capability-manifest migration, prints
// build metadata, and assembles a full object graph to check that startup
// succeeds end to end. It does not serve HTTP and does not embed a
// concrete provider SDK — library callers construct their own
// provider.Registry and pass it to corectx.New to actually route
// requests; "inspect" below does the same with a no-op registry to
// exercise the rest of the graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/qrouter/core/config"
	"github.com/qrouter/core/corectx"
	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/routing"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate-config":
		runValidateConfig(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runValidateConfig(args []string) {
	fs := flag.NewFlagSet("validate-config", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config OK")
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := buildBootstrapLogger()
	defer logger.Sync()

	if err := routing.MigrateCapabilityManifest(cfg.Database.Path); err != nil {
		logger.Fatal("capability manifest migration failed", zap.Error(err))
	}
	logger.Info("capability manifest migrated", zap.String("path", cfg.Database.Path))
}

// runInspect builds the full object graph (corectx.New) against a no-op
// provider registry and reports whether every component came up cleanly:
// logger, telemetry, capability database, router, context manager, and
// executor. It exercises the same construction path a long-running host
// process would use, without needing a concrete provider SDK wired in.
func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	withAgent := fs.Bool("with-agent", false, "Construct the DQN routing agent alongside the router")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var opts []corectx.Option
	if *withAgent {
		opts = append(opts, corectx.WithAgent())
	}

	core, err := corectx.New(cfg, provider.NewNoopRegistry(), opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build object graph: %v\n", err)
		os.Exit(1)
	}
	defer core.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbErr := core.DB.Ping(ctx)
	stats := core.DB.Stats()

	fmt.Println("qrouter object graph: OK")
	fmt.Printf("  database:        path=%s open=%d in_use=%d idle=%d\n", cfg.Database.Path, stats.OpenConnections, stats.InUse, stats.Idle)
	if dbErr != nil {
		fmt.Printf("  database ping:   FAILED: %v\n", dbErr)
	} else {
		fmt.Println("  database ping:   OK")
	}
	fmt.Printf("  router:          history_size=%d cost_weight=%.2f latency_weight=%.2f\n", cfg.Router.HistorySize, cfg.Router.CostWeight, cfg.Router.LatencyWeight)
	fmt.Printf("  context manager: max_tokens=%d session_timeout=%ds\n", cfg.Context.MaxTokens, cfg.Context.SessionTimeoutS)
	fmt.Printf("  executor:        max_workers=%d variation_count=%d collapse=%s\n", cfg.Quantum.MaxWorkers, cfg.Quantum.VariationCount, cfg.Quantum.DefaultCollapse)
	fmt.Printf("  dqn agent:       enabled=%v\n", core.Agent != nil)
	fmt.Printf("  telemetry:       %v\n", core.Telemetry != nil)

	if dbErr != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	return loader.Load()
}

func buildBootstrapLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func printVersion() {
	fmt.Printf("qrouter %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`qrouter - multi-provider LLM routing core

Usage:
  qrouter <command> [options]

Commands:
  validate-config   Load and validate a config file
  migrate           Run the capability manifest database migration
  inspect           Build the full object graph against a no-op provider
                    and report whether every component starts cleanly
  version           Show version information
  help              Show this help message

Options for 'validate-config', 'migrate', and 'inspect':
  --config <path>   Path to configuration file (YAML)

Options for 'inspect':
  --with-agent      Also construct the DQN routing agent

Examples:
  qrouter validate-config --config config.yaml
  qrouter migrate --config config.yaml
  qrouter inspect --config config.yaml
  qrouter version

To actually route requests, embed this module as a library: construct a
provider.Registry backed by a real provider SDK and call
corectx.New(cfg, registry) to obtain a wired Coordinator.`)
}
