// Package metrics provides the Prometheus instrumentation for the
// routing core: request outcomes, cache hit rates, branch execution
// results, and DQN training progress.
//
// Grounded on the teacher's internal/metrics/collector.go Collector
// shape (one promauto metric per concern, grouped constructor, thin
// Record* methods), re-labeled for this domain instead of HTTP/agent
// metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds every metric the routing core emits.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	branchesTotal  *prometheus.CounterVec
	branchDuration *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	dqnEpsilon      prometheus.Gauge
	dqnTrainSteps   prometheus.Counter
	dqnReplaySize   prometheus.Gauge
	dqnTrainLoss    prometheus.Histogram

	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector registers every metric under namespace and returns a
// ready-to-use Collector.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of orchestration requests handled, by task type and outcome.",
		},
		[]string{"task_type", "status"},
	)

	c.requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request handling duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"task_type"},
	)

	c.branchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branches_total",
			Help:      "Total number of speculative execution branches, by provider/model and outcome.",
		},
		[]string{"provider", "model", "status"},
	)

	c.branchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "branch_duration_seconds",
			Help:      "Per-branch completion latency in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits, by cache name.",
		},
		[]string{"cache"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses, by cache name.",
		},
		[]string{"cache"},
	)

	c.dqnEpsilon = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dqn_epsilon",
		Help:      "Current DQN exploration rate.",
	})

	c.dqnTrainSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dqn_train_steps_total",
		Help:      "Total number of DQN replay-and-learn steps performed.",
	})

	c.dqnReplaySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dqn_replay_buffer_size",
		Help:      "Current number of experiences held in the replay buffer.",
	})

	c.dqnTrainLoss = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dqn_train_loss",
		Help:      "DQN training step loss.",
		Buckets:   prometheus.DefBuckets,
	})

	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections.",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections.",
		},
		[]string{"database"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordRequest records one completed Handle call (spec transition into
// PERSISTED or FAILED).
func (c *Collector) RecordRequest(taskType, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(taskType, status).Inc()
	c.requestDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

// RecordBranch records one Quantum Executor branch outcome.
func (c *Collector) RecordBranch(provider, model, status string, duration time.Duration) {
	c.branchesTotal.WithLabelValues(provider, model, status).Inc()
	c.branchDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordCacheHit records a hit against the named cache (e.g. "result",
// "decision").
func (c *Collector) RecordCacheHit(cacheName string) {
	c.cacheHits.WithLabelValues(cacheName).Inc()
}

// RecordCacheMiss records a miss against the named cache.
func (c *Collector) RecordCacheMiss(cacheName string) {
	c.cacheMisses.WithLabelValues(cacheName).Inc()
}

// RecordTrainStep records one DQN Replay() call's outcome.
func (c *Collector) RecordTrainStep(epsilon float64, replaySize int, loss float64) {
	c.dqnTrainSteps.Inc()
	c.dqnEpsilon.Set(epsilon)
	c.dqnReplaySize.Set(float64(replaySize))
	c.dqnTrainLoss.Observe(loss)
}

// RecordDBConnections records the capability-manifest connection pool's
// current utilization.
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}
