// Copyright 2026 Quantum Routing Core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config manages the orchestrator's recognized configuration surface:
cache, context, dqn, quantum, router and reward blocks, a database
connection-pool block, plus an ambient logging/telemetry block. Configuration merges in priority order: defaults,
then YAML file, then environment variables.

# Core types

  - Config: the full recognized surface (spec §6)
  - Loader: builder-style loader (file path, env prefix, validators)
  - HotReloadManager: watches the config file, swaps in the reloaded
    configuration and reports field-level changes; fields outside its
    hot-reloadable list (such as the database pool settings) are flagged as
    requiring a restart
  - FileWatcher: debounced file-change notifications backing the hot reload

# Example

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("QROUTER").
		Load()
*/
package config
