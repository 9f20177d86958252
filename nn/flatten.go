package nn

import (
	"fmt"

	"go-grad/tensor"
)

// Flatten collapses every dimension after the first into one, turning a batch
// of images [B, C, H, W] into the [B, C*H*W] matrix a Linear layer wants.
type Flatten struct{}

func NewFlatten() *Flatten { return &Flatten{} }

func (f *Flatten) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	shape := input.GetShape()
	if len(shape) < 2 {
		return nil, fmt.Errorf("flatten expects at least 2 dimensions, got shape %v", shape)
	}
	features := 1
	for _, dim := range shape[1:] {
		features *= dim
	}
	return tensor.Reshape(input, []int{shape[0], features})
}

func (f *Flatten) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (f *Flatten) ZeroGrad()                    {}
func (f *Flatten) Name() string                 { return "Flatten" }
