package orchestrator

import (
	"strings"

	"github.com/qrouter/core/routing"
)

// contextTypeOrder mirrors routing/types.go's unexported contextTypeOrder:
// the fixed one-hot slot order RoutingState.ContextOneHot uses. Duplicated
// here since the router doesn't export its internal slot ordering; both
// must agree for a decision's ContextType to land in the right slot.
var contextTypeOrder = []routing.ContextType{
	routing.ContextCodeGeneration, routing.ContextCodeReview, routing.ContextDebugging,
	routing.ContextDocumentation, routing.ContextTesting, routing.ContextArchitecture,
	routing.ContextSecurity, routing.ContextOther,
}

// providerSlots mirrors routing/types.go's unexported providerSlots: the
// fixed 4-slot provider order RoutingState's availability/success vectors
// use.
var providerSlots = []string{"openai", "anthropic", "google", "local"}

// buildState assembles the DQN agent's observation vector for one request
// (spec §3's RoutingState), combining the router's decision with the
// capability manifest's per-provider signals.
func buildState(decision routing.Decision, candidates []routing.ModelCapability, preferenceStrength float64) routing.RoutingState {
	state := routing.RoutingState{TaskComplexity: decision.ComplexityScore, UserPreferenceStrength: preferenceStrength}

	for i, ct := range contextTypeOrder {
		if ct == decision.ContextType {
			state.ContextOneHot[i] = 1
		}
	}

	success := map[string][]float64{}
	for _, c := range candidates {
		success[c.ProviderCode] = append(success[c.ProviderCode], c.HistoricalSuccess)
	}
	for i, p := range providerSlots {
		vals, ok := success[p]
		if !ok || len(vals) == 0 {
			continue
		}
		state.ProviderAvailability[i] = 1
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		state.ProviderSuccess[i] = sum / float64(len(vals))
	}

	state.ResourceWeights = [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	return state
}

// resolveAction validates an agent-proposed action against the enabled
// capability-manifest candidates (DESIGN.md Open Question decision #1:
// "suggest then validate" — the DQN never bypasses C6's eligibility
// filter). An exact (provider, model) match is kept as is; otherwise the
// model (e.g. the action table's placeholder "default") is replaced by the
// provider's candidate with the highest HistoricalSuccess. Returns
// ok=false if the provider has no enabled candidate at all.
func resolveAction(candidates []routing.ModelCapability, action routing.RoutingAction) (routing.RoutingAction, bool) {
	var best *routing.ModelCapability
	for i, c := range candidates {
		if c.ProviderCode != action.Provider {
			continue
		}
		if c.ModelName == action.Model {
			return action, true
		}
		if best == nil || c.HistoricalSuccess > best.HistoricalSuccess {
			best = &candidates[i]
		}
	}
	if best == nil {
		return action, false
	}
	action.Model = best.ModelName
	return action, true
}

// contextKeywords duplicates routing.classifyContextType's keyword table
// (unexported there) so the decision cache can be probed by context type
// before paying for a capability-manifest read; both copies must classify
// identically since the coordinator's cache key has to match what Route
// would itself compute.
var contextKeywords = map[routing.ContextType][]string{
	routing.ContextCodeGeneration: {"write", "implement", "create a function", "generate"},
	routing.ContextCodeReview:     {"review", "pull request", "pr feedback", "code quality"},
	routing.ContextDebugging:      {"fix", "bug", "error", "exception", "traceback", "stack trace", "typeerror", "crash"},
	routing.ContextDocumentation:  {"document", "docs", "readme", "docstring", "api reference"},
	routing.ContextTesting:        {"test", "unit test", "coverage", "assert", "mock"},
	routing.ContextArchitecture:   {"architecture", "design a system", "microservices", "scalable system"},
	routing.ContextSecurity:       {"security", "vulnerability", "audit", "authentication", "exploit"},
}

func classifyContextType(prompt string) routing.ContextType {
	lower := strings.ToLower(prompt)
	best := routing.ContextOther
	bestHits := 0
	for _, ct := range contextTypeOrder {
		hits := 0
		for _, kw := range contextKeywords[ct] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = ct
		}
	}
	return best
}
