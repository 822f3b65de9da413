package quantum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SubmitRunsTask(t *testing.T) {
	p := NewPool(2, 4)
	defer p.Close()

	ran := make(chan struct{}, 1)
	resultCh, err := p.Submit(context.Background(), func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	require.NoError(t, <-resultCh)
}

func TestPool_SubmitReturnsOverloadedWhenQueueFull(t *testing.T) {
	p := NewPool(1, 0)
	defer p.Close()

	block := make(chan struct{})
	_, err := p.Submit(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	})
	require.NoError(t, err)

	// Give the worker a moment to pick up the first task so the queue (cap 0)
	// is genuinely full for the second submission.
	time.Sleep(20 * time.Millisecond)

	_, err = p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.Error(t, err)

	close(block)
}

func TestPool_StatsReportsMaxWorkers(t *testing.T) {
	p := NewPool(3, 10)
	defer p.Close()
	assert.Equal(t, 3, p.Stats().MaxWorkers)
}

func TestPool_PanicInTaskIsRecovered(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Close()

	resultCh, err := p.Submit(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})
	require.NoError(t, err)
	assert.Error(t, <-resultCh)
}
