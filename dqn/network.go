// Package dqn implements the Q-Network (C8) and DQN Routing Agent (C9):
// a feed-forward value network trained online against target Q-values,
// and the epsilon-greedy agent that drives action selection, experience
// capture, and the periodic training step built on top of it.
package dqn

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// Backend is the interface the agent trains against. Exactly one concrete
// implementation ships here (denseBackend) — see DESIGN.md's Open Question
// decision on why no accelerated/tensor-library backend exists in this
// module: nothing in the retrieval pack pulls in a tensor library, and
// fabricating a dependency nobody in the corpus uses would defeat the
// point of grounding every piece in it. The interface still lets a future
// accelerated backend slot in without touching Agent.
type Backend interface {
	// Predict returns Q-values for a batch of states, shape [n][actionSize].
	Predict(states [][]float64) [][]float64
	// Fit takes one or more gradient steps toward targets and returns the
	// final epoch's mean-squared error.
	Fit(states, targets [][]float64, epochs, batchSize int) float64
	// Weights returns a deep copy of the network's parameters, used for
	// the agent's online→target soft/hard sync.
	Weights() Weights
	// SetWeights overwrites the network's parameters.
	SetWeights(w Weights)
	// SaveWeights/LoadWeights persist to a self-describing format: shape
	// metadata travels with the parameters, so a save from one hidden-layer
	// configuration is rejected (not silently misread) by a differently
	// shaped network.
	SaveWeights(path string) error
	LoadWeights(path string) error
}

// Weights is the self-describing, backend-agnostic parameter snapshot:
// layer sizes travel alongside the matrices themselves so a load call can
// validate shape before applying, and so an accelerated backend added
// later could read the same file format.
type Weights struct {
	LayerSizes []int         `json:"layer_sizes"`
	W          [][][]float64 `json:"weights"` // W[layer][in][out]
	B          [][]float64   `json:"biases"`  // B[layer][out]
}

// denseBackend is the fallback dense backend: manual matmul, manual
// backprop, gradient clipping by max-norm, Xavier-initialized weights.
// Grounded on original_source's NumpyDQNModel (the non-TensorFlow
// fallback path in monkey_coder/quantum/neural_network.py), translated
// from numpy array ops to explicit loops over [][]float64.
type denseBackend struct {
	layerSizes []int // [state_size, hidden..., action_size]
	w          [][][]float64
	b          [][]float64
	lr         float64
	maxNorm    float64
	rng        *rand.Rand
}

// NewDenseBackend builds a dense feed-forward network with Xavier-
// initialized weights. hiddenLayers is the tuple between stateSize and
// actionSize (default (64, 32) per spec §4.8).
func NewDenseBackend(stateSize, actionSize int, hiddenLayers []int, lr, maxNorm float64, seed int64) *denseBackend {
	layerSizes := append([]int{stateSize}, hiddenLayers...)
	layerSizes = append(layerSizes, actionSize)

	rng := rand.New(rand.NewSource(seed))
	nb := &denseBackend{
		layerSizes: layerSizes,
		lr:         lr,
		maxNorm:    maxNorm,
		rng:        rng,
	}
	nb.w = make([][][]float64, len(layerSizes)-1)
	nb.b = make([][]float64, len(layerSizes)-1)
	for l := 0; l < len(layerSizes)-1; l++ {
		fanIn, fanOut := layerSizes[l], layerSizes[l+1]
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		nb.w[l] = make([][]float64, fanIn)
		for i := range nb.w[l] {
			nb.w[l][i] = make([]float64, fanOut)
			for j := range nb.w[l][i] {
				nb.w[l][i][j] = (rng.Float64()*2 - 1) * limit
			}
		}
		nb.b[l] = make([]float64, fanOut)
	}
	return nb
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func reluDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// forward runs one state through the network, returning every layer's
// pre-activation (z) and post-activation (a) values for use in backprop.
func (n *denseBackend) forward(state []float64) (zs [][]float64, activations [][]float64) {
	activations = append(activations, state)
	current := state
	for l := 0; l < len(n.w); l++ {
		out := make([]float64, n.layerSizes[l+1])
		for j := 0; j < n.layerSizes[l+1]; j++ {
			sum := n.b[l][j]
			for i := 0; i < n.layerSizes[l]; i++ {
				sum += current[i] * n.w[l][i][j]
			}
			out[j] = sum
		}
		zs = append(zs, out)

		activated := make([]float64, len(out))
		if l < len(n.w)-1 {
			for j, v := range out {
				activated[j] = relu(v)
			}
		} else {
			copy(activated, out) // linear output layer
		}
		activations = append(activations, activated)
		current = activated
	}
	return zs, activations
}

// Predict returns Q-values for a batch of states.
func (n *denseBackend) Predict(states [][]float64) [][]float64 {
	out := make([][]float64, len(states))
	for i, s := range states {
		_, activations := n.forward(s)
		out[i] = activations[len(activations)-1]
	}
	return out
}

// Fit trains for `epochs` passes over the given (states, targets),
// processing in chunks of batchSize, and returns the final epoch's mean
// loss. Gradients are clipped by L2 norm to maxNorm before the weight
// update, matching spec §4.8's "gradient clipping by configured max-norm".
func (n *denseBackend) Fit(states, targets [][]float64, epochs, batchSize int) float64 {
	if batchSize <= 0 {
		batchSize = len(states)
	}
	var lastLoss float64
	for epoch := 0; epoch < epochs; epoch++ {
		var epochLoss float64
		batches := 0
		for start := 0; start < len(states); start += batchSize {
			end := start + batchSize
			if end > len(states) {
				end = len(states)
			}
			epochLoss += n.trainBatch(states[start:end], targets[start:end])
			batches++
		}
		if batches > 0 {
			lastLoss = epochLoss / float64(batches)
		}
	}
	return lastLoss
}

func (n *denseBackend) trainBatch(states, targets [][]float64) float64 {
	numLayers := len(n.w)
	gradW := make([][][]float64, numLayers)
	gradB := make([][]float64, numLayers)
	for l := 0; l < numLayers; l++ {
		gradW[l] = make([][]float64, n.layerSizes[l])
		for i := range gradW[l] {
			gradW[l][i] = make([]float64, n.layerSizes[l+1])
		}
		gradB[l] = make([]float64, n.layerSizes[l+1])
	}

	var totalLoss float64
	for sampleIdx, state := range states {
		target := targets[sampleIdx]
		zs, activations := n.forward(state)
		output := activations[len(activations)-1]

		for j := range output {
			diff := output[j] - target[j]
			totalLoss += diff * diff
		}

		// delta at output layer: dL/dz = 2*(output-target)/actionSize (MSE)
		delta := make([]float64, len(output))
		for j := range output {
			delta[j] = 2 * (output[j] - target[j]) / float64(len(output))
		}

		for l := numLayers - 1; l >= 0; l-- {
			prevActivation := activations[l]
			for i := 0; i < n.layerSizes[l]; i++ {
				for j := 0; j < n.layerSizes[l+1]; j++ {
					gradW[l][i][j] += prevActivation[i] * delta[j]
				}
			}
			for j := range delta {
				gradB[l][j] += delta[j]
			}

			if l > 0 {
				prevDelta := make([]float64, n.layerSizes[l])
				for i := 0; i < n.layerSizes[l]; i++ {
					var sum float64
					for j := 0; j < n.layerSizes[l+1]; j++ {
						sum += n.w[l][i][j] * delta[j]
					}
					prevDelta[i] = sum * reluDerivative(zs[l-1][i])
				}
				delta = prevDelta
			}
		}
	}

	batchSize := float64(len(states))
	n.clipAndApply(gradW, gradB, batchSize)

	return totalLoss / (batchSize * float64(n.layerSizes[len(n.layerSizes)-1]))
}

// clipAndApply averages accumulated gradients over the batch, clips the
// combined L2 norm to maxNorm, and applies the gradient-descent update.
func (n *denseBackend) clipAndApply(gradW [][][]float64, gradB [][]float64, batchSize float64) {
	var sumSquares float64
	for l := range gradW {
		for i := range gradW[l] {
			for j := range gradW[l][i] {
				gradW[l][i][j] /= batchSize
				sumSquares += gradW[l][i][j] * gradW[l][i][j]
			}
		}
		for j := range gradB[l] {
			gradB[l][j] /= batchSize
			sumSquares += gradB[l][j] * gradB[l][j]
		}
	}

	norm := math.Sqrt(sumSquares)
	scale := 1.0
	if n.maxNorm > 0 && norm > n.maxNorm {
		scale = n.maxNorm / norm
	}

	for l := range n.w {
		for i := range n.w[l] {
			for j := range n.w[l][i] {
				n.w[l][i][j] -= n.lr * gradW[l][i][j] * scale
			}
		}
		for j := range n.b[l] {
			n.b[l][j] -= n.lr * gradB[l][j] * scale
		}
	}
}

// Weights returns a deep copy of the network's current parameters.
func (n *denseBackend) Weights() Weights {
	w := Weights{
		LayerSizes: append([]int(nil), n.layerSizes...),
		W:          make([][][]float64, len(n.w)),
		B:          make([][]float64, len(n.b)),
	}
	for l := range n.w {
		w.W[l] = make([][]float64, len(n.w[l]))
		for i := range n.w[l] {
			w.W[l][i] = append([]float64(nil), n.w[l][i]...)
		}
		w.B[l] = append([]float64(nil), n.b[l]...)
	}
	return w
}

// SetWeights overwrites the network's parameters with a deep copy of w.
func (n *denseBackend) SetWeights(w Weights) {
	n.w = make([][][]float64, len(w.W))
	for l := range w.W {
		n.w[l] = make([][]float64, len(w.W[l]))
		for i := range w.W[l] {
			n.w[l][i] = append([]float64(nil), w.W[l][i]...)
		}
	}
	n.b = make([][]float64, len(w.B))
	for l := range w.B {
		n.b[l] = append([]float64(nil), w.B[l]...)
	}
}

// SaveWeights writes the network's parameters as self-describing JSON.
func (n *denseBackend) SaveWeights(path string) error {
	data, err := json.Marshal(n.Weights())
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadWeights reads a previously saved weight file, rejecting it if its
// layer shape doesn't match this network's configuration.
func (n *denseBackend) LoadWeights(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read weights: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshal weights: %w", err)
	}
	if len(w.LayerSizes) != len(n.layerSizes) {
		return fmt.Errorf("weight file has %d layers, network has %d", len(w.LayerSizes), len(n.layerSizes))
	}
	for i := range w.LayerSizes {
		if w.LayerSizes[i] != n.layerSizes[i] {
			return fmt.Errorf("weight file layer %d has size %d, network expects %d", i, w.LayerSizes[i], n.layerSizes[i])
		}
	}
	n.SetWeights(w)
	return nil
}
