package dqn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenseBackend_PredictShape(t *testing.T) {
	nb := NewDenseBackend(4, 3, []int{8, 4}, 0.01, 1.0, 1)
	out := nb.Predict([][]float64{{1, 2, 3, 4}, {0, 0, 0, 0}})
	require.Len(t, out, 2)
	assert.Len(t, out[0], 3)
	assert.Len(t, out[1], 3)
}

func TestDenseBackend_FitReducesLoss(t *testing.T) {
	nb := NewDenseBackend(2, 2, []int{8}, 0.05, 5.0, 1)
	states := [][]float64{{1, 0}, {0, 1}}
	targets := [][]float64{{1, 0}, {0, 1}}

	before := nb.Fit(states, targets, 1, 2)
	for i := 0; i < 50; i++ {
		nb.Fit(states, targets, 1, 2)
	}
	after := nb.Fit(states, targets, 1, 2)

	assert.Less(t, after, before)
}

func TestDenseBackend_WeightsRoundTrip(t *testing.T) {
	nb := NewDenseBackend(3, 2, []int{4}, 0.01, 1.0, 1)
	original := nb.Weights()

	nb2 := NewDenseBackend(3, 2, []int{4}, 0.01, 1.0, 2) // different seed/weights
	nb2.SetWeights(original)

	assert.Equal(t, original, nb2.Weights())
}

func TestDenseBackend_SaveLoadWeights(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/weights.json"

	nb := NewDenseBackend(3, 2, []int{4}, 0.01, 1.0, 1)
	require.NoError(t, nb.SaveWeights(path))

	nb2 := NewDenseBackend(3, 2, []int{4}, 0.01, 1.0, 99)
	require.NoError(t, nb2.LoadWeights(path))

	assert.Equal(t, nb.Weights(), nb2.Weights())
}

func TestDenseBackend_LoadRejectsShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/weights.json"

	nb := NewDenseBackend(3, 2, []int{4}, 0.01, 1.0, 1)
	require.NoError(t, nb.SaveWeights(path))

	differentShape := NewDenseBackend(3, 2, []int{8}, 0.01, 1.0, 1)
	err := differentShape.LoadWeights(path)
	assert.Error(t, err)
}

func TestDenseBackend_LoadMissingFileErrors(t *testing.T) {
	nb := NewDenseBackend(3, 2, []int{4}, 0.01, 1.0, 1)
	err := nb.LoadWeights("/nonexistent/path/weights.json")
	assert.Error(t, err)
}

func TestDenseBackend_DeterministicGivenSameSeed(t *testing.T) {
	a := NewDenseBackend(4, 3, []int{8, 4}, 0.01, 1.0, 42)
	b := NewDenseBackend(4, 3, []int{8, 4}, 0.01, 1.0, 42)
	assert.Equal(t, a.Weights(), b.Weights())
}

