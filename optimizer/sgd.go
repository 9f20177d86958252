package optimizer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"go-grad/tensor"
)

// common methods all optimizers must provide
type Optimizer interface {
	Step() error
	ZeroGrad()
	Parameters() []*tensor.Tensor
}

// SGD: stochastic gradient descent. Holds references to the parameters it
// updates; it never owns them.
type SGD struct {
	learningRate float64
	parameters   []*tensor.Tensor
}

// NewSGD receives the parameters to manage (tensors with RequiresGrad=true)
// and a positive learning rate.
func NewSGD(parameters []*tensor.Tensor, learningRate float64) (*SGD, error) {
	if learningRate <= 0 {
		return nil, fmt.Errorf("optimizer: learning rate must be positive, got %f", learningRate)
	}

	validParams := []*tensor.Tensor{}
	for _, p := range parameters {
		if p != nil && p.RequiresGrad {
			validParams = append(validParams, p)
		}
	}
	if len(validParams) == 0 {
		return nil, fmt.Errorf("optimizer: no parameters requiring gradients provided")
	}

	return &SGD{
		learningRate: learningRate,
		parameters:   validParams,
	}, nil
}

// Step applies parameter -= learning_rate * gradient in place. Parameters
// whose gradient has never been populated are skipped, so a Step before any
// backward pass is a no-op rather than a failure.
func (s *SGD) Step() error {
	for _, p := range s.parameters {
		if p.Grad == nil {
			continue
		}
		if !tensor.IsSameSize(p, p.Grad) {
			return fmt.Errorf("optimizer: gradient shape %v does not match parameter shape %v",
				p.Grad.GetShape(), p.GetShape())
		}
		floats.AddScaled(p.GetData(), -s.learningRate, p.Grad.GetData())
	}
	return nil
}

// ZeroGrad zeroes every managed parameter's gradient, whether or not Step has
// run. Gradients accumulate across backward passes until this is called.
func (s *SGD) ZeroGrad() {
	for _, p := range s.parameters {
		p.ZeroGrad()
	}
}

func (s *SGD) Parameters() []*tensor.Tensor {
	return s.parameters
}
