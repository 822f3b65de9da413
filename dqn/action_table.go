package dqn

import "github.com/qrouter/core/routing"

// ActionSpec is one entry of the agent's discrete action space: the
// concrete (provider, model, strategy) triple an action index maps to.
type ActionSpec struct {
	Provider string
	Model    string
	Strategy routing.Strategy
}

// ActionTable is the static index→action mapping spec §4.9 ("map index to
// action via static table") requires, versioned per DESIGN.md's Open
// Question decision #2. Version identifies the table; no component
// compares it, so a network's output indices are read against whatever
// table the Agent was built with.
type ActionTable struct {
	Version uint64
	Specs   []ActionSpec
}

// Size returns the action space size A.
func (t ActionTable) Size() int { return len(t.Specs) }

// Action maps an index to its (provider, model, strategy) triple and
// panics if index is outside [0, Size()). Agent.Act passes either a random
// index below Size() or the arg-max of the online network's outputs; it
// has no fallback for an out-of-range index.
func (t ActionTable) Action(index int) routing.RoutingAction {
	spec := t.Specs[index]
	return routing.RoutingAction{Provider: spec.Provider, Model: spec.Model, Strategy: spec.Strategy}
}

// DefaultActionTable returns the baseline A=12 action space spec §3
// specifies: three representative providers crossed with the four
// routing strategies. "local" is deliberately excluded from the learned
// action space (unlike RoutingState's 4-slot provider-availability
// vector) since it has no meaningfully distinct model to route a
// strategy-varied action toward; the router's capability manifest, not
// the action table, is the source of truth for which concrete models
// exist.
func DefaultActionTable() ActionTable {
	providers := []string{"openai", "anthropic", "google"}
	strategies := []routing.Strategy{
		routing.StrategyTaskOptimized,
		routing.StrategyPerformance,
		routing.StrategyBalanced,
		routing.StrategyCostEfficient,
	}

	var specs []ActionSpec
	for _, p := range providers {
		for _, s := range strategies {
			specs = append(specs, ActionSpec{Provider: p, Model: "default", Strategy: s})
		}
	}
	return ActionTable{Version: 1, Specs: specs}
}
