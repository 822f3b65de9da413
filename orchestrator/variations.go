package orchestrator

import (
	"github.com/google/uuid"

	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/quantum"
	"github.com/qrouter/core/routing"
)

// allStrategies lists all four strategies in a fixed order;
// buildVariations skips the chosen one, so its extra branches are
// deterministic.
var allStrategies = []routing.Strategy{
	routing.StrategyTaskOptimized,
	routing.StrategyPerformance,
	routing.StrategyBalanced,
	routing.StrategyCostEfficient,
}

// buildVariations expands the chosen (provider, model, strategy) into K
// branches for the Quantum Executor (spec §4.11 step 4): the chosen
// action itself, then the other strategies on the same provider/model,
// then the chosen strategy against each other candidate in the order the
// manifest returned them, up to k total. Duplicate (provider, model,
// strategy) triples are skipped, so fewer than k variations come back
// when those run out.
func buildVariations(chosen routing.RoutingAction, candidates []routing.ModelCapability, k int, messages []provider.Message, params provider.CompletionParams) []quantum.Variation {
	if k <= 0 {
		k = 1
	}

	seen := map[string]bool{}
	var variations []quantum.Variation

	add := func(provName, model string, strategy routing.Strategy) {
		key := provName + "\x1f" + model + "\x1f" + string(strategy)
		if seen[key] || len(variations) >= k {
			return
		}
		seen[key] = true
		variations = append(variations, quantum.Variation{
			ID:       uuid.New().String(),
			Provider: provName,
			Model:    model,
			Strategy: strategy,
			Messages: messages,
			Params:   params,
		})
	}

	add(chosen.Provider, chosen.Model, chosen.Strategy)

	for _, s := range allStrategies {
		if s == chosen.Strategy {
			continue
		}
		add(chosen.Provider, chosen.Model, s)
	}

	for _, c := range candidates {
		if c.ProviderCode == chosen.Provider && c.ModelName == chosen.Model {
			continue
		}
		add(c.ProviderCode, c.ModelName, chosen.Strategy)
	}

	return variations
}
