package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-grad/autograd"
	"go-grad/nn"
	"go-grad/tensor"
)

// One optimizer step on a separable batch with fixed weights and a stable
// learning rate must strictly decrease the loss on that same batch.
func TestSingleStepDecreasesLoss(t *testing.T) {
	// 2 features, 2 classes, 4 separable points (class = sign of features)
	inputData := []float64{
		1.0, 0.8,
		0.9, 1.2,
		-1.1, -0.7,
		-0.8, -1.0,
	}
	targets := []int{0, 0, 1, 1}

	layer, err := nn.NewLinear(2, 2, 1)
	require.NoError(t, err)
	copy(layer.Parameters()[0].GetData(), []float64{0.1, -0.2, 0.3, 0.05})
	copy(layer.Parameters()[1].GetData(), []float64{0, 0})

	lossOn := func() float64 {
		x, err := tensor.NewTensor([]int{4, 2}, inputData)
		require.NoError(t, err)
		logits, err := layer.Forward(x)
		require.NoError(t, err)
		loss, err := nn.CrossEntropyLoss(logits, targets)
		require.NoError(t, err)
		return loss.GetData()[0]
	}

	x, err := tensor.NewTensor([]int{4, 2}, inputData)
	require.NoError(t, err)
	logits, err := layer.Forward(x)
	require.NoError(t, err)
	loss, err := nn.CrossEntropyLoss(logits, targets)
	require.NoError(t, err)
	before := loss.GetData()[0]

	sgd, err := NewSGD(layer.Parameters(), 0.1)
	require.NoError(t, err)
	require.NoError(t, autograd.Backward(loss))
	require.NoError(t, sgd.Step())

	assert.Less(t, lossOn(), before, "one step must strictly decrease the loss")
}

// fixed separable fixture: 8 examples, 4 features, class = sign of the
// dominant features
var (
	convergenceInputs = []float64{
		1.2, 0.9, -0.3, 0.5,
		0.8, 1.1, 0.2, 0.7,
		1.0, 0.7, -0.1, 0.9,
		0.9, 1.3, 0.4, 0.6,
		-1.1, -0.8, 0.3, -0.6,
		-0.9, -1.2, -0.2, -0.8,
		-1.3, -0.7, 0.1, -0.9,
		-0.8, -1.0, -0.4, -0.5,
	}
	convergenceTargets = []int{0, 0, 0, 0, 1, 1, 1, 1}
)

// trainRun builds a seeded 4 -> 3 (ReLU) -> 2 (LogSoftmax) net, trains it
// full-batch for the given number of steps and returns first and final loss.
func trainRun(t *testing.T, seed uint64, steps int) (first, last float64) {
	t.Helper()

	l1, err := nn.NewLinear(4, 3, seed)
	require.NoError(t, err)
	l2, err := nn.NewLinear(3, 2, seed+1)
	require.NoError(t, err)
	model := nn.NewSequential(l1, nn.NewRELU(), l2, nn.NewLogSoftmax())

	sgd, err := NewSGD(model.Parameters(), 0.5)
	require.NoError(t, err)

	for i := 0; i < steps; i++ {
		x, err := tensor.NewTensor([]int{8, 4}, convergenceInputs)
		require.NoError(t, err)
		logProbs, err := model.Forward(x)
		require.NoError(t, err)
		loss, err := nn.NLLLoss(logProbs, convergenceTargets)
		require.NoError(t, err)

		sgd.ZeroGrad()
		require.NoError(t, autograd.Backward(loss))
		require.NoError(t, sgd.Step())

		if i == 0 {
			first = loss.GetData()[0]
		}
		last = loss.GetData()[0]
	}
	return first, last
}

// A small seeded network on a fixed separable dataset converges below a fixed
// threshold, and the whole run is reproducible given the seed.
func TestTrainingConvergesOnSeparableData(t *testing.T) {
	first, last := trainRun(t, 42, 500)

	assert.Less(t, last, first, "training must reduce the loss")
	assert.Less(t, last, 0.1, "loss must converge below the fixed threshold")

	// identical seed and data replay the exact same trajectory
	_, rerun := trainRun(t, 42, 500)
	assert.Equal(t, last, rerun, "seeded runs must be bit-identical")

	_, other := trainRun(t, 7, 500)
	assert.Less(t, other, 0.1, "convergence must not depend on one lucky seed")
}
