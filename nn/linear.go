package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"go-grad/tensor"
)

// linear dense layer: output = input @ weight + bias
type Linear struct {
	weight *tensor.Tensor // shape: [inputDimensions, outputDimensions]
	bias   *tensor.Tensor // shape: [outputDimensions]
}

// NewLinear creates a Linear layer with Glorot-uniform weights drawn from the
// given seed and a zero bias. The same seed always produces the same weights,
// which is what makes training runs reproducible. Both tensors are parameters
// and require gradients.
func NewLinear(inputDimensions, outputDimensions int, seed uint64) (*Linear, error) {
	if inputDimensions <= 0 || outputDimensions <= 0 {
		return nil, fmt.Errorf("linear layer dimensions must be positive, got input %d, output %d", inputDimensions, outputDimensions)
	}

	// uniform over [-limit, limit] with limit = sqrt(6 / (fan_in + fan_out))
	limit := math.Sqrt(6.0 / float64(inputDimensions+outputDimensions))
	dist := distuv.Uniform{Min: -limit, Max: limit, Src: rand.NewSource(seed)}

	weightData := make([]float64, inputDimensions*outputDimensions)
	for i := range weightData {
		weightData[i] = dist.Rand()
	}

	weight, err := tensor.NewTensor([]int{inputDimensions, outputDimensions}, weightData)
	if err != nil {
		return nil, fmt.Errorf("linear layer failed to create weight tensor: %w", err)
	}
	weight.RequiresGrad = true

	bias, err := tensor.NewTensor([]int{outputDimensions}, nil)
	if err != nil {
		return nil, fmt.Errorf("linear layer failed to create bias tensor: %w", err)
	}
	bias.RequiresGrad = true

	return &Linear{weight: weight, bias: bias}, nil
}

// Forward applies the affine map to a [batch, inputDimensions] tensor. The
// bias broadcast and its reverse (summing over the batch axis) are handled by
// the AddRows op.
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.GetShape()
	if len(inputShape) != 2 {
		return nil, fmt.Errorf("linear layer expects 2D input [batch, features], got shape %v", inputShape)
	}
	if inputShape[1] != l.weight.GetShape()[0] {
		return nil, fmt.Errorf("linear layer input dimension mismatch: input %d, weight expects %d", inputShape[1], l.weight.GetShape()[0])
	}

	scores, err := tensor.MatMul(input, l.weight)
	if err != nil {
		return nil, fmt.Errorf("linear layer matmul failed: %w", err)
	}
	out, err := tensor.AddRows(scores, l.bias)
	if err != nil {
		return nil, fmt.Errorf("linear layer bias addition failed: %w", err)
	}
	return out, nil
}

// Parameters returns weight then bias, always in that order; the optimizer
// indexes parameters by this order.
func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.weight, l.bias}
}

func (l *Linear) ZeroGrad() {
	l.weight.ZeroGrad()
	l.bias.ZeroGrad()
}

func (l *Linear) Name() string {
	return fmt.Sprintf("Linear(%d, %d)", l.weight.GetShape()[0], l.weight.GetShape()[1])
}
