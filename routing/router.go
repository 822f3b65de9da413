package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/qrouter/core/types"
)

// Request is the subset of the inbound request the Advanced Router needs.
type Request struct {
	Prompt         string
	DefaultPersona string
	FileCount      int
	PriorMessages  int
}

// Router is the Advanced Router (C6): combines C4 (complexity), C5
// (persona), a capability manifest, and historical/cost/latency signals
// into a single deterministic RoutingDecision. Grounded on llm/router.go's
// query-candidates-then-score-then-buildSelection shape.
type Router struct {
	store       *CapabilityStore
	costWeight  float64
	latencyRef  float64 // ms; penalty = latencyWeight * (avgLatencyMs / latencyRef)
	latencyWeight float64

	mu          sync.Mutex
	history     []Decision
	historySize int
}

// NewRouter creates an Advanced Router. historySize bounds the in-memory
// decision log (spec §4.6 step 7); costWeight/latencyWeight come from
// config.RouterConfig.
func NewRouter(store *CapabilityStore, historySize int, costWeight, latencyWeight float64) *Router {
	if historySize <= 0 {
		historySize = 1
	}
	return &Router{
		store:         store,
		costWeight:    costWeight,
		latencyWeight: latencyWeight,
		latencyRef:    1000, // ms; a 1s response is the penalty's unit reference
		historySize:   historySize,
	}
}

// Route implements C6's route_request operation.
func (r *Router) Route(ctx context.Context, req Request) (Decision, error) {
	persona, strippedPrompt, slashCommand := ParsePersonaCommand(req.Prompt, req.DefaultPersona)

	complexityScore, complexityLevel := AnalyzeComplexity(ComplexityInput{
		Prompt:        strippedPrompt,
		FileCount:     req.FileCount,
		PriorMessages: req.PriorMessages,
	})

	contextType := classifyContextType(strippedPrompt)

	candidates, err := r.store.Candidates(ctx)
	if err != nil {
		return Decision{}, types.NewInternalError("loading capability manifest", err)
	}
	if len(candidates) == 0 {
		return Decision{}, types.NewNoEligibleModelError("no candidate (provider, model) available")
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scoredCandidate{
			capability: c,
			score:      r.score(c, contextType, persona),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score // higher capability first
		}
		if a.capability.CostPer1KTokens != b.capability.CostPer1KTokens {
			return a.capability.CostPer1KTokens < b.capability.CostPer1KTokens // lower cost first
		}
		return a.capability.ModelName < b.capability.ModelName // alphabetical
	})

	winner := scored[0]

	confidence := 1.0
	if len(scored) > 1 {
		confidence = clip01(winner.score - scored[1].score)
	}

	decision := Decision{
		Provider:        winner.capability.ProviderCode,
		Model:           winner.capability.ModelName,
		Persona:         persona,
		ComplexityScore: complexityScore,
		ComplexityLevel: complexityLevel,
		ContextType:     contextType,
		CapabilityScore: winner.score,
		Confidence:      confidence,
		Reasoning: fmt.Sprintf(
			"selected %s/%s for persona=%s context=%s complexity=%s (score=%.3f, runner-up margin=%.3f)",
			winner.capability.ProviderCode, winner.capability.ModelName, persona, contextType, complexityLevel, winner.score, confidence,
		),
	}
	if slashCommand != "" {
		decision.Metadata = map[string]any{"slash_command": slashCommand}
	}

	r.record(decision)
	return decision, nil
}

type scoredCandidate struct {
	capability ModelCapability
	score      float64
}

// score implements spec §4.6 step 4's capability formula: weighted sum of
// (capability-match bits × persona weights) + historical success − cost
// penalty − latency penalty.
func (r *Router) score(c ModelCapability, contextType ContextType, persona string) float64 {
	capabilityMatch := c.ContextScores()[contextType]
	personaWeight, ok := c.PersonaWeights()[persona]
	if !ok {
		personaWeight = 1.0 // no persona-specific adjustment recorded
	}

	costPenalty := r.costWeight * (c.CostPer1KTokens / 1000.0)
	latencyPenalty := r.latencyWeight * (c.AvgLatencyMs / r.latencyRef)

	return capabilityMatch*personaWeight + c.HistoricalSuccess - costPenalty - latencyPenalty
}

func (r *Router) record(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, d)
	if len(r.history) > r.historySize {
		r.history = r.history[len(r.history)-r.historySize:]
	}
}

// History returns a snapshot of the bounded decision log, most recent last.
func (r *Router) History() []Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Decision, len(r.history))
	copy(out, r.history)
	return out
}

// contextKeywords maps keyword signals to the ContextType they indicate.
// Grounded on spec §4.6 step 3 ("classify context type by keyword/signal
// matching"); the set itself follows the eight types spec §3 enumerates.
var contextKeywords = map[ContextType][]string{
	ContextCodeGeneration: {"write", "implement", "create a function", "generate"},
	ContextCodeReview:     {"review", "pull request", "pr feedback", "code quality"},
	ContextDebugging:      {"fix", "bug", "error", "exception", "traceback", "stack trace", "typeerror", "crash"},
	ContextDocumentation:  {"document", "docs", "readme", "docstring", "api reference"},
	ContextTesting:        {"test", "unit test", "coverage", "assert", "mock"},
	ContextArchitecture:   {"architecture", "design a system", "microservices", "scalable system"},
	ContextSecurity:       {"security", "vulnerability", "audit", "authentication", "exploit"},
}

// classifyContextType picks the single best-matching ContextType by
// keyword hit count, defaulting to ContextOther when nothing matches.
func classifyContextType(prompt string) ContextType {
	lower := strings.ToLower(prompt)

	best := ContextOther
	bestHits := 0
	for _, ct := range contextTypeOrder {
		kws, ok := contextKeywords[ct]
		if !ok {
			continue
		}
		hits := 0
		for _, kw := range kws {
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
