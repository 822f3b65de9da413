// Package metrics provides Prometheus instrumentation for the routing
// core: request outcomes and latency, per-branch execution results,
// cache hit rates, DQN training progress, and capability-manifest
// connection pool utilization. Metrics are registered once via
// promauto and grouped on a single Collector, namespaced so multiple
// instances can run side by side.
package metrics
