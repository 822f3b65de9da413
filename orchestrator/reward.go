package orchestrator

import "github.com/qrouter/core/config"

// errorPenalty is subtracted from the reward when the winning branch
// itself ended in anything other than a clean success. The spec names
// the term but leaves its magnitude unspecified ("reward weights and the
// reference constants ... not centrally specified"); 1.0 puts an errored
// win below the worst possible clean-success reward (whose three terms
// are each in [0,1]), so the agent always prefers a clean win.
const errorPenalty = 1.0

// computeReward implements C11's post-execution reward function (spec
// §4.9): r = w_q*quality + w_s*(1-min(1,latency/L_ref)) +
// w_c*(1-min(1,cost/C_ref)) - penalty_on_error. Deterministic given its
// inputs.
func computeReward(cfg config.RewardConfig, quality, latencyMS, cost float64, hadError bool) float64 {
	speedTerm := 1 - minFloat(1, safeDiv(latencyMS, cfg.LatencyRefMS))
	costTerm := 1 - minFloat(1, safeDiv(cost, cfg.CostRef))

	reward := cfg.WQuality*quality + cfg.WSpeed*speedTerm + cfg.WCost*costTerm
	if hadError {
		reward -= errorPenalty
	}
	return reward
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func safeDiv(n, d float64) float64 {
	if d <= 0 {
		return 0
	}
	return n / d
}
