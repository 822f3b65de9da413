package stream

import (
	"testing"

	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/quantum"
	"github.com/qrouter/core/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, e *Emitter) []Event {
	t.Helper()
	var events []Event
	for ev := range e.Events() {
		events = append(events, ev)
	}
	return events
}

func TestEmitter_SeqIsStrictlyIncreasing(t *testing.T) {
	e := NewEmitter(8)
	go func() {
		e.Start("t1", routing.Decision{})
		e.Progress(StepRouting, 10)
		e.Progress(StepExecuting, 50)
		e.Complete("t1")
	}()

	events := drain(t, e)
	require.Len(t, events, 4)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestEmitter_CompleteIsSoleTerminator(t *testing.T) {
	e := NewEmitter(4)
	go func() {
		e.Start("t1", routing.Decision{})
		e.Complete("t1")
	}()

	events := drain(t, e)
	last := events[len(events)-1]
	assert.Equal(t, KindComplete, last.Kind)
	terminators := 0
	for _, ev := range events {
		if ev.Kind == KindComplete || ev.Kind == KindError {
			terminators++
		}
	}
	assert.Equal(t, 1, terminators)
}

func TestEmitter_FailIsSoleTerminator(t *testing.T) {
	e := NewEmitter(4)
	go func() {
		e.Start("t1", routing.Decision{})
		e.Fail("NO_ELIGIBLE_MODEL", "no candidate available", false)
	}()

	events := drain(t, e)
	last := events[len(events)-1]
	assert.Equal(t, KindError, last.Kind)
	assert.Equal(t, "NO_ELIGIBLE_MODEL", last.Error.Code)
	terminators := 0
	for _, ev := range events {
		if ev.Kind == KindComplete || ev.Kind == KindError {
			terminators++
		}
	}
	assert.Equal(t, 1, terminators)
}

func TestEmitter_BranchEventCarriesStatus(t *testing.T) {
	e := NewEmitter(4)
	go func() {
		e.Branch(quantum.BranchResult{VariationID: "b1", Provider: "openai", Model: "m", Status: quantum.StatusSucceeded, ElapsedMS: 42})
		e.Complete("t1")
	}()

	events := drain(t, e)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].Branch)
	assert.Equal(t, "b1", events[0].Branch.VariationID)
	assert.Equal(t, quantum.StatusSucceeded, events[0].Branch.Status)
	assert.EqualValues(t, 42, events[0].Branch.ElapsedMS)
}

func TestEmitter_ResultCarriesWinnerAndUsage(t *testing.T) {
	e := NewEmitter(4)
	go func() {
		e.Result("answer", provider.Usage{PromptTokens: 10, CompletionTokens: 5}, WinnerRef{Provider: "openai", Model: "gpt", Strategy: routing.StrategyBalanced}, 0.8)
		e.Complete("t1")
	}()

	events := drain(t, e)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].Result)
	assert.Equal(t, "answer", events[0].Result.Content)
	assert.Equal(t, "openai", events[0].Result.Winner.Provider)
	assert.InDelta(t, 0.8, events[0].Result.Confidence, 1e-9)
}
