package quantum

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/qrouter/core/internal/metrics"
	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures the Executor, mirroring config.QuantumConfig.
type Config struct {
	MaxWorkers       int
	QueueCapacity    int
	BranchTimeoutMS  int
	ExecuteTimeoutMS int
	CancelGraceMS    int
	DefaultCollapse  CollapseStrategy
	CostLambda       float64 // best-score collapse weight on cost
	LatencyMu        float64 // best-score collapse weight on latency
}

// Executor is the Quantum Executor (C10): runs a set of variations as
// parallel branches over a bounded worker pool and collapses the
// completed set to one winner.
type Executor struct {
	pool     *Pool
	registry provider.Registry
	cfg      Config
	logger   *zap.Logger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	rps       float64
	burst     int

	metrics *metrics.Collector
}

// Option configures optional Executor behavior at construction.
type Option func(*Executor)

// WithMetrics attaches a Collector that records one branch outcome per
// completed task (spec §4.10's per-branch status/latency).
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor wires a worker pool, a provider registry, and per-provider
// rate limiting into a ready-to-use executor. ratePerSecond/burst bound
// each distinct provider name's outbound call rate independently.
func NewExecutor(registry provider.Registry, cfg Config, ratePerSecond float64, burst int, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		pool:     NewPool(cfg.MaxWorkers, cfg.QueueCapacity),
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		rps:      ratePerSecond,
		burst:    burst,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) limiterFor(providerName string) *rate.Limiter {
	e.limiterMu.Lock()
	defer e.limiterMu.Unlock()
	l, ok := e.limiters[providerName]
	if !ok {
		l = rate.NewLimiter(rate.Limit(e.rps), e.burst)
		e.limiters[providerName] = l
	}
	return l
}

// Execute runs one variation per branch in parallel and collapses the
// completed set per the configured (or overridden) collapse strategy.
// Never returns an error: total failure is represented as
// Result{Success: false, Error: AllBranchesFailed}.
func (e *Executor) Execute(ctx context.Context, variations []Variation, strategy CollapseStrategy, similarity SimilarityFunc) Result {
	if strategy == "" {
		strategy = e.cfg.DefaultCollapse
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.ExecuteTimeoutMS)*time.Millisecond)
	defer cancel()

	branches := make([]BranchResult, len(variations))
	branchCtx := make([]context.Context, len(variations))
	branchCancel := make([]context.CancelFunc, len(variations))

	var wg sync.WaitGroup
	done := make(chan int, len(variations)) // signals index of a branch reaching StatusSucceeded

	for i, v := range variations {
		bctx, bcancel := context.WithTimeout(execCtx, time.Duration(e.cfg.BranchTimeoutMS)*time.Millisecond)
		branchCtx[i] = bctx
		branchCancel[i] = bcancel
		branches[i] = BranchResult{VariationID: v.ID, Provider: v.Provider, Model: v.Model, Strategy: v.Strategy, Status: StatusRunning}

		task, local := e.runBranch(v)
		wg.Add(1)
		resultCh, err := e.pool.Submit(bctx, task)
		if err != nil {
			wg.Done()
			bcancel()
			branches[i].Status = StatusFailed
			branches[i].Err = err
			continue
		}

		go func(idx int, bctx context.Context, resultCh <-chan error, local *BranchResult) {
			defer wg.Done()
			select {
			case <-resultCh:
				// Receiving here happens-after the worker goroutine finished
				// mutating local and is the only point branches[idx] is
				// written for this index, so this copy is race-free even
				// though local was built on another goroutine.
				branches[idx] = *local
			case <-bctx.Done():
				// The branch may still be running and writing to local; it
				// is abandoned rather than read, per awaitGrace's contract.
				if errors.Is(bctx.Err(), context.DeadlineExceeded) {
					branches[idx].Status = StatusTimeout
				} else {
					branches[idx].Status = StatusCancelled
				}
				branches[idx].Err = bctx.Err()
			}
			if strategy == CollapseFirstSuccess && branches[idx].Status == StatusSucceeded {
				done <- idx
			}
		}(i, bctx, resultCh, local)
	}

	if strategy == CollapseFirstSuccess {
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case idx, ok := <-done:
			if ok {
				e.cancelOthers(branchCancel, idx)
				e.awaitGrace(&wg)
				winner := branches[idx]
				return Result{Success: true, Winner: &winner, Branches: branches}
			}
		case <-execCtx.Done():
		}
		wg.Wait()
	} else {
		wg.Wait()
	}

	for _, c := range branchCancel {
		c()
	}

	winner, err := collapse(strategy, branches, e.cfg.CostLambda, e.cfg.LatencyMu, similarity)
	if err != nil {
		return Result{Success: false, Branches: branches, Error: types.NewAllBranchesFailedError("all branches failed", err)}
	}
	return Result{Success: true, Winner: winner, Branches: branches}
}

// cancelOthers cancels every branch context except winner, implementing
// first-success's cooperative-cancellation semantics.
func (e *Executor) cancelOthers(cancels []context.CancelFunc, winner int) {
	for i, c := range cancels {
		if i == winner {
			continue
		}
		c()
	}
}

// awaitGrace gives cancelled branches cancel_grace_ms to wind down before
// the caller stops waiting on them; branches that don't finish in time are
// abandoned (their eventual result, if any, is discarded since nothing
// reads resultCh after this point for them).
func (e *Executor) awaitGrace(wg *sync.WaitGroup) {
	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(time.Duration(e.cfg.CancelGraceMS) * time.Millisecond):
	}
}

// runBranch builds the pool Task for one variation plus the result record
// it will exclusively mutate: acquires the provider's rate limiter, calls
// generate_completion, and records the branch's final status/score inputs.
// The returned *BranchResult belongs to the task's goroutine alone until
// the caller observes completion via the pool's result channel — Execute
// never reads it before that happens-before edge.
func (e *Executor) runBranch(v Variation) (Task, *BranchResult) {
	result := &BranchResult{VariationID: v.ID, Provider: v.Provider, Model: v.Model, Strategy: v.Strategy, Status: StatusRunning}
	task := func(ctx context.Context) error {
		start := time.Now()
		defer func() {
			if e.metrics != nil {
				e.metrics.RecordBranch(v.Provider, v.Model, string(result.Status), time.Since(start))
			}
		}()

		if e.rps > 0 {
			if err := e.limiterFor(v.Provider).Wait(ctx); err != nil {
				result.Status = StatusTimeout
				result.Err = err
				result.ElapsedMS = elapsedMS(start)
				return err
			}
		}

		completion, err := e.registry.GenerateCompletion(ctx, v.Provider, v.Model, v.Messages, v.Params)
		result.ElapsedMS = elapsedMS(start)
		result.LatencyMS = float64(result.ElapsedMS)

		if err != nil {
			if ctx.Err() != nil {
				result.Status = StatusTimeout
			} else {
				result.Status = StatusFailed
			}
			result.Err = err
			return err
		}

		result.Status = StatusSucceeded
		result.Content = completion.Content
		result.Usage = completion.Usage
		result.Quality = qualityFromFinishReason(completion.FinishReason)
		return nil
	}
	return task, result
}

// qualityFromFinishReason gives every successful branch a deterministic
// quality signal from its finish reason (there is no other scoring hook):
// a clean "stop" finish scores highest, truncation/content-filter finishes
// score lower.
func qualityFromFinishReason(reason string) float64 {
	switch reason {
	case "stop", "":
		return 1.0
	case "length":
		return 0.7
	case "content_filter":
		return 0.3
	default:
		return 0.5
	}
}

// Stats returns the underlying worker pool's current load.
func (e *Executor) Stats() Stats {
	return e.pool.Stats()
}

// Close stops the executor's worker pool.
func (e *Executor) Close() {
	e.pool.Close()
}
