// Package stream defines the outbound event shapes the Orchestration
// Coordinator (C11) emits over one execute call, and an Emitter that
// assigns each event a strictly increasing sequence number. Grounded on
// llm/provider.go's Stream(ctx, req) (<-chan StreamChunk, error) channel
// pattern, generalized from one provider's token deltas to the
// coordinator's full start/progress/branch/delta/result/complete/error
// vocabulary (spec §6).
package stream

import (
	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/quantum"
	"github.com/qrouter/core/routing"
)

// Kind names one of the seven outbound event types spec §6 enumerates.
type Kind string

const (
	KindStart    Kind = "start"
	KindProgress Kind = "progress"
	KindBranch   Kind = "branch"
	KindDelta    Kind = "delta"
	KindResult   Kind = "result"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Step names a progress event's stage.
type Step string

const (
	StepRouting    Step = "routing"
	StepExecuting  Step = "executing"
	StepCollapsing Step = "collapsing"
	StepPersisting Step = "persisting"
)

// Event is one outbound stream event. Seq is assigned by Emitter and is
// strictly increasing within one execute call; exactly one event with
// Kind in {KindComplete, KindError} ever terminates a given stream.
type Event struct {
	Seq  uint64 `json:"seq"`
	Kind Kind   `json:"kind"`

	Start    *StartPayload    `json:"start,omitempty"`
	Progress *ProgressPayload `json:"progress,omitempty"`
	Branch   *BranchPayload   `json:"branch,omitempty"`
	Delta    *DeltaPayload    `json:"delta,omitempty"`
	Result   *ResultPayload   `json:"result,omitempty"`
	Complete *CompletePayload `json:"complete,omitempty"`
	Error    *ErrorPayload    `json:"error,omitempty"`
}

// StartPayload opens the stream with the routing decision that will drive
// execution.
type StartPayload struct {
	TaskID         string          `json:"task_id"`
	RoutingDecision routing.Decision `json:"routing_decision"`
}

// ProgressPayload reports coarse-grained advancement through the state
// machine (spec §4.11's CONTEXT_LOADED..PERSISTED transitions).
type ProgressPayload struct {
	Step       Step `json:"step"`
	Percentage int  `json:"percentage"`
}

// BranchPayload reports one quantum branch's status transition.
type BranchPayload struct {
	VariationID string           `json:"variation_id"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	Strategy    routing.Strategy `json:"strategy"`
	Status      quantum.Status   `json:"status"`
	ElapsedMS   int64            `json:"elapsed_ms"`
}

// DeltaPayload carries one streamed text fragment from a provider that
// supports token-level streaming; omitted entirely for providers that
// don't.
type DeltaPayload struct {
	Text string `json:"text"`
}

// WinnerRef names the (provider, model, strategy) the collapse step chose.
type WinnerRef struct {
	Provider string           `json:"provider"`
	Model    string           `json:"model"`
	Strategy routing.Strategy `json:"strategy"`
}

// ResultPayload is the final answer content plus the winning branch's
// identity and the router's confidence in that choice.
type ResultPayload struct {
	Content    string          `json:"content"`
	Usage      provider.Usage  `json:"usage"`
	Winner     WinnerRef       `json:"winner"`
	Confidence float64         `json:"confidence"`
}

// CompletePayload is the stream's success terminator.
type CompletePayload struct {
	TaskID string `json:"task_id"`
}

// ErrorPayload is the stream's failure terminator.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}
