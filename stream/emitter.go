package stream

import (
	"sync/atomic"

	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/quantum"
	"github.com/qrouter/core/routing"
)

// Emitter assigns strictly increasing sequence numbers to a single
// execute call's events and fans them out over a buffered channel. One
// Emitter is scoped to exactly one request; it is not safe to share
// across requests since Seq numbering and the "exactly one terminal
// event" contract are both per-call.
type Emitter struct {
	seq atomic.Uint64
	out chan Event
}

// NewEmitter creates an Emitter backed by a channel buffered to hold
// capacity pending events before a send blocks the emitting goroutine.
func NewEmitter(capacity int) *Emitter {
	if capacity <= 0 {
		capacity = 1
	}
	return &Emitter{out: make(chan Event, capacity)}
}

// Events returns the read side of the event channel. The channel is
// closed after exactly one of Complete/Fail has been emitted.
func (e *Emitter) Events() <-chan Event {
	return e.out
}

func (e *Emitter) emit(ev Event) {
	ev.Seq = e.seq.Add(1)
	e.out <- ev
}

// Start emits the stream-opening event.
func (e *Emitter) Start(taskID string, decision routing.Decision) {
	e.emit(Event{Kind: KindStart, Start: &StartPayload{TaskID: taskID, RoutingDecision: decision}})
}

// Progress emits a coarse-grained state-machine advancement event.
func (e *Emitter) Progress(step Step, percentage int) {
	e.emit(Event{Kind: KindProgress, Progress: &ProgressPayload{Step: step, Percentage: percentage}})
}

// Branch emits one quantum branch's current status.
func (e *Emitter) Branch(b quantum.BranchResult) {
	e.emit(Event{Kind: KindBranch, Branch: &BranchPayload{
		VariationID: b.VariationID,
		Provider:    b.Provider,
		Model:       b.Model,
		Strategy:    b.Strategy,
		Status:      b.Status,
		ElapsedMS:   b.ElapsedMS,
	}})
}

// Delta emits one streamed text fragment.
func (e *Emitter) Delta(text string) {
	e.emit(Event{Kind: KindDelta, Delta: &DeltaPayload{Text: text}})
}

// Result emits the final answer plus the winning branch's identity.
func (e *Emitter) Result(content string, usage provider.Usage, winner WinnerRef, confidence float64) {
	e.emit(Event{Kind: KindResult, Result: &ResultPayload{
		Content:    content,
		Usage:      usage,
		Winner:     winner,
		Confidence: confidence,
	}})
}

// Complete emits the stream's success terminator and closes the channel.
// The caller must not emit anything after calling Complete.
func (e *Emitter) Complete(taskID string) {
	e.emit(Event{Kind: KindComplete, Complete: &CompletePayload{TaskID: taskID}})
	close(e.out)
}

// Fail emits the stream's failure terminator and closes the channel. The
// caller must not emit anything after calling Fail.
func (e *Emitter) Fail(code, message string, retriable bool) {
	e.emit(Event{Kind: KindError, Error: &ErrorPayload{Code: code, Message: message, Retriable: retriable}})
	close(e.out)
}
