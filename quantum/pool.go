// Package quantum implements the Quantum Executor (C10): a bounded worker
// pool that runs a set of routing variations in parallel as independent
// branches and collapses the completed set to a single winner via one of
// three collapse strategies.
package quantum

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/qrouter/core/types"
)

// Task is one unit of branch work submitted to the pool.
type Task func(ctx context.Context) error

// Pool is a bounded worker pool with a queued-backpressure policy.
// Adapted from internal/pool/goroutine_pool.go: renamed to the branch/task
// domain, ErrPoolFull mapped to the spec's Overloaded error kind, and
// idle-worker shrink-back dropped since the executor's worker count is
// sized once at construction from quantum.max_workers rather than
// elastically scaled.
type Pool struct {
	maxWorkers int
	queue      chan taskWrapper
	active     atomic.Int32
	closed     atomic.Bool
	wg         sync.WaitGroup
}

type taskWrapper struct {
	task   Task
	ctx    context.Context
	result chan error
}

// NewPool creates a pool with maxWorkers goroutines draining a queue
// bounded at queueCapacity.
func NewPool(maxWorkers, queueCapacity int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueCapacity < 0 {
		queueCapacity = 0
	}
	p := &Pool{
		maxWorkers: maxWorkers,
		queue:      make(chan taskWrapper, queueCapacity),
	}
	for i := 0; i < maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for wrapper := range p.queue {
		p.active.Add(1)
		err := p.runTask(wrapper)
		p.active.Add(-1)
		wrapper.result <- err
		close(wrapper.result)
	}
}

func (p *Pool) runTask(wrapper taskWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("branch task panicked")
		}
	}()
	return wrapper.task(wrapper.ctx)
}

// Submit enqueues a task and returns a channel receiving its single
// result. Returns Overloaded immediately if the queue is already full —
// spec §4.10's backpressure policy, no blocking wait for queue space.
func (p *Pool) Submit(ctx context.Context, task Task) (<-chan error, error) {
	if p.closed.Load() {
		return nil, types.NewOverloadedError("pool is closed")
	}

	wrapper := taskWrapper{task: task, ctx: ctx, result: make(chan error, 1)}
	select {
	case p.queue <- wrapper:
		return wrapper.result, nil
	default:
		return nil, types.NewOverloadedError("worker queue saturated")
	}
}

// Stats is a point-in-time snapshot of the pool's load.
type Stats struct {
	MaxWorkers int `json:"max_workers"`
	Active     int `json:"active"`
	Queued     int `json:"queued"`
}

// Stats returns the pool's current load.
func (p *Pool) Stats() Stats {
	return Stats{
		MaxWorkers: p.maxWorkers,
		Active:     int(p.active.Load()),
		Queued:     len(p.queue),
	}
}

// Close stops accepting new work and waits for in-flight branches to
// finish.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.queue)
	p.wg.Wait()
}
