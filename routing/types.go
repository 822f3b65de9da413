// Package routing implements the Complexity Analyzer (C4), Persona/Command
// Parser (C5), and Advanced Router (C6): together they turn a raw prompt
// into a RoutingDecision the Quantum Executor can act on.
package routing

// ContextType classifies what kind of task a prompt represents. The order
// here is the canonical one-hot bit order used by RoutingState.
type ContextType string

const (
	ContextCodeGeneration ContextType = "code_generation"
	ContextCodeReview     ContextType = "code_review"
	ContextDebugging      ContextType = "debugging"
	ContextDocumentation  ContextType = "documentation"
	ContextTesting        ContextType = "testing"
	ContextArchitecture   ContextType = "architecture"
	ContextSecurity       ContextType = "security"
	ContextOther          ContextType = "other"
)

// contextTypeOrder fixes the one-hot slot index for each ContextType.
var contextTypeOrder = []ContextType{
	ContextCodeGeneration, ContextCodeReview, ContextDebugging,
	ContextDocumentation, ContextTesting, ContextArchitecture,
	ContextSecurity, ContextOther,
}

// ComplexityLevel is the discrete bucket a complexity score falls into.
type ComplexityLevel string

const (
	LevelTrivial  ComplexityLevel = "trivial"
	LevelSimple   ComplexityLevel = "simple"
	LevelModerate ComplexityLevel = "moderate"
	LevelComplex  ComplexityLevel = "complex"
	LevelCritical ComplexityLevel = "critical"
)

// LevelForScore buckets a complexity score per spec §4.4's thresholds.
func LevelForScore(score float64) ComplexityLevel {
	switch {
	case score < 0.2:
		return LevelTrivial
	case score < 0.4:
		return LevelSimple
	case score < 0.6:
		return LevelModerate
	case score < 0.85:
		return LevelComplex
	default:
		return LevelCritical
	}
}

// Strategy is one axis of a RoutingAction: how the chosen model should be
// invoked.
type Strategy string

const (
	StrategyTaskOptimized Strategy = "task_optimized"
	StrategyPerformance   Strategy = "performance"
	StrategyBalanced      Strategy = "balanced"
	StrategyCostEfficient Strategy = "cost_efficient"
)

// providerSlots fixes the provider-availability/success order used by
// RoutingState. The canonical baseline table names four providers; a
// provider outside this table falls into no slot and does not contribute
// to those signals (spec §3 fixes the baseline vector at length 21, which
// is only consistent with a 4-provider slot count — see DESIGN.md).
var providerSlots = []string{"openai", "anthropic", "google", "local"}

// RoutingState is the fixed-length numeric feature vector the DQN agent
// observes (spec §3). Length 21 = 1 (complexity) + 8 (context one-hot) +
// 4 (provider availability) + 4 (historical success) + 3 (resource
// weights: cost, time, quality) + 1 (user preference strength).
type RoutingState struct {
	TaskComplexity         float64    // [0,1]
	ContextOneHot          [8]float64 // sums to 1
	ProviderAvailability   [4]float64 // bits, 0 or 1
	ProviderSuccess        [4]float64 // normalized historical success
	ResourceWeights        [3]float64 // cost, time, quality; sums to 1±ε
	UserPreferenceStrength float64    // [0,1]
}

// StateSize is the fixed RoutingState vector length (spec §3 baseline: 21).
const StateSize = 1 + 8 + 4 + 4 + 3 + 1

// Vector flattens the state into the 21-length slice the Q-network expects.
func (s RoutingState) Vector() []float64 {
	v := make([]float64, 0, StateSize)
	v = append(v, s.TaskComplexity)
	v = append(v, s.ContextOneHot[:]...)
	v = append(v, s.ProviderAvailability[:]...)
	v = append(v, s.ProviderSuccess[:]...)
	v = append(v, s.ResourceWeights[:]...)
	v = append(v, s.UserPreferenceStrength)
	return v
}

// RoutingAction is a (provider, model, strategy) tuple. The action space is
// a finite enumeration of length A (baseline 12); the DQN agent outputs an
// index 0..A-1 mapped to a tuple via ActionTable.
type RoutingAction struct {
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Strategy Strategy `json:"strategy"`
}

// Decision is the output of Route (C6), consumed by the Quantum Executor.
type Decision struct {
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	Persona          string          `json:"persona"`
	ComplexityScore  float64         `json:"complexity_score"`
	ComplexityLevel  ComplexityLevel `json:"complexity_level"`
	ContextType      ContextType     `json:"context_type"`
	CapabilityScore  float64         `json:"capability_score"`
	Confidence       float64         `json:"confidence"`
	Reasoning        string          `json:"reasoning"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}
