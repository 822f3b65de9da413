package dqn

import (
	"math/rand"
	"sync"

	"github.com/qrouter/core/internal/metrics"
	"github.com/qrouter/core/replay"
	"github.com/qrouter/core/routing"
)

// AgentConfig mirrors config.DQNConfig's fields the agent itself needs
// (the replay buffer's capacity/priority settings are wired by the
// caller directly into replay.New).
type AgentConfig struct {
	Gamma              float64
	EpsStart           float64
	EpsMin             float64
	EpsDecay           float64
	BatchSize          int
	TargetSyncInterval int
	Tau                float64 // 0 disables soft update; hard-copy Qo->Qt instead
	Seed               int64
}

// Agent is the DQN Routing Agent (C9): owns an online network Qo and a
// target network Qt of identical shape, an ActionTable, and a replay
// buffer. act/remember/replay/decay_epsilon are its four operations.
type Agent struct {
	online *denseBackend
	target *denseBackend
	table  ActionTable
	buffer *replay.Buffer

	mu      sync.Mutex
	rng     *rand.Rand
	epsilon float64
	cfg     AgentConfig

	trainingSteps int

	metrics *metrics.Collector
}

// Option configures optional Agent behavior at construction.
type Option func(*Agent)

// WithMetrics attaches a Collector that records epsilon, replay buffer
// size, and training loss on every successful Replay() call.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Agent) { a.metrics = m }
}

// NewAgent wires an online/target network pair, an action table, and a
// replay buffer into a ready-to-use agent.
func NewAgent(online, target *denseBackend, table ActionTable, buffer *replay.Buffer, cfg AgentConfig, opts ...Option) *Agent {
	target.SetWeights(online.Weights()) // start in sync
	a := &Agent{
		online:  online,
		target:  target,
		table:   table,
		buffer:  buffer,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		epsilon: cfg.EpsStart,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Act implements C9's act(state): with probability epsilon, picks a
// uniform random action index; otherwise arg-maxes Qo(state). Returns the
// chosen RoutingAction and the index picked, since remember() needs the
// index to build an Experience.
func (a *Agent) Act(state routing.RoutingState) (routing.RoutingAction, int) {
	a.mu.Lock()
	eps := a.epsilon
	a.mu.Unlock()

	var index int
	if a.rng.Float64() < eps {
		index = a.rng.Intn(a.table.Size())
	} else {
		qValues := a.online.Predict([][]float64{state.Vector()})[0]
		index = argmax(qValues)
	}
	return a.table.Action(index), index
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// Remember pushes an experience onto the replay buffer (C7), deferring
// priority defaulting to the buffer itself.
func (a *Agent) Remember(state routing.RoutingState, actionIndex int, reward float64, nextState routing.RoutingState, done bool) {
	a.buffer.Add(replay.Experience{
		State:     state,
		Action:    actionIndex,
		Reward:    reward,
		NextState: nextState,
		Done:      done,
	})
}

// Replay implements C9's replay(): samples a batch, computes DQN targets
// yi = ri + gamma * max_a Qt(next_state_i, a) * (1 - done_i), takes one
// gradient step on Qo, and every TargetSyncInterval calls syncs Qt from Qo
// (hard copy, or soft update when Tau > 0). Returns (0, false) if the
// buffer doesn't yet have a full batch.
func (a *Agent) Replay() (float64, bool) {
	batch, ok := a.buffer.Sample(a.cfg.BatchSize)
	if !ok {
		return 0, false
	}

	states := make([][]float64, len(batch.Experiences))
	nextStates := make([][]float64, len(batch.Experiences))
	for i, exp := range batch.Experiences {
		states[i] = exp.State.Vector()
		nextStates[i] = exp.NextState.Vector()
	}

	currentQ := a.online.Predict(states)
	nextQTarget := a.target.Predict(nextStates)

	targets := make([][]float64, len(batch.Experiences))
	for i, exp := range batch.Experiences {
		targets[i] = append([]float64(nil), currentQ[i]...)
		maxNextQ := nextQTarget[i][argmax(nextQTarget[i])]
		yi := exp.Reward
		if !exp.Done {
			yi += a.cfg.Gamma * maxNextQ
		}
		targets[i][exp.Action] = yi
	}

	loss := a.online.Fit(states, targets, 1, a.cfg.BatchSize)

	a.mu.Lock()
	a.trainingSteps++
	steps := a.trainingSteps
	a.mu.Unlock()

	if a.cfg.TargetSyncInterval > 0 && steps%a.cfg.TargetSyncInterval == 0 {
		a.syncTarget()
	}

	if a.metrics != nil {
		a.metrics.RecordTrainStep(a.Epsilon(), a.buffer.Size(), loss)
	}

	return loss, true
}

// syncTarget copies Qo's weights into Qt. When Tau > 0, performs a soft
// (Polyak) update instead of a hard copy: Qt <- tau*Qo + (1-tau)*Qt.
func (a *Agent) syncTarget() {
	if a.cfg.Tau <= 0 {
		a.target.SetWeights(a.online.Weights())
		return
	}

	onlineW := a.online.Weights()
	targetW := a.target.Weights()
	tau := a.cfg.Tau

	for l := range targetW.W {
		for i := range targetW.W[l] {
			for j := range targetW.W[l][i] {
				targetW.W[l][i][j] = tau*onlineW.W[l][i][j] + (1-tau)*targetW.W[l][i][j]
			}
		}
		for j := range targetW.B[l] {
			targetW.B[l][j] = tau*onlineW.B[l][j] + (1-tau)*targetW.B[l][j]
		}
	}
	a.target.SetWeights(targetW)
}

// DecayEpsilon implements C9's decay_epsilon(): eps <- max(eps_min,
// eps*decay). Called by the coordinator after each successful execution
// whose action the agent chose.
func (a *Agent) DecayEpsilon() {
	a.mu.Lock()
	defer a.mu.Unlock()
	decayed := a.epsilon * a.cfg.EpsDecay
	if decayed < a.cfg.EpsMin {
		decayed = a.cfg.EpsMin
	}
	a.epsilon = decayed
}

// Epsilon returns the agent's current exploration rate.
func (a *Agent) Epsilon() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epsilon
}

// PerformanceMetrics is C9's get_performance_metrics() return shape.
type PerformanceMetrics struct {
	ExplorationRate   float64 `json:"exploration_rate"`
	MemoryUtilization float64 `json:"memory_utilization"`
	TrainingSteps     int     `json:"training_steps"`
	ActionSpaceSize   int     `json:"action_space_size"`
	StateSpaceSize    int     `json:"state_space_size"`
}

// GetPerformanceMetrics implements C9's get_performance_metrics().
func (a *Agent) GetPerformanceMetrics() PerformanceMetrics {
	a.mu.Lock()
	eps := a.epsilon
	steps := a.trainingSteps
	a.mu.Unlock()

	stats := a.buffer.Statistics()
	utilization := 0.0
	if stats.Capacity > 0 {
		utilization = float64(stats.Size) / float64(stats.Capacity)
	}

	return PerformanceMetrics{
		ExplorationRate:   eps,
		MemoryUtilization: utilization,
		TrainingSteps:     steps,
		ActionSpaceSize:   a.table.Size(),
		StateSpaceSize:    routing.StateSize,
	}
}
