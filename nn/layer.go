package nn

import "go-grad/tensor"

// Layer defines the interface that all neural network layers must implement.
// Layers supply initial parameter values and the forward op; all graph
// bookkeeping lives in the tensors they produce.
type Layer interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	ZeroGrad()
	Name() string
}

// --- Activation layers: stateless wrappers over the tensor ops ---

type RELUActivation struct{}

func NewRELU() *RELUActivation { return &RELUActivation{} }

func (r *RELUActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReLU(input)
}
func (r *RELUActivation) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (r *RELUActivation) ZeroGrad()                    {}
func (r *RELUActivation) Name() string                 { return "ReLU" }

type SigmoidActivation struct{}

func NewSigmoid() *SigmoidActivation { return &SigmoidActivation{} }

func (s *SigmoidActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Sigmoid(input)
}
func (s *SigmoidActivation) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (s *SigmoidActivation) ZeroGrad()                    {}
func (s *SigmoidActivation) Name() string                 { return "Sigmoid" }

type TanhActivation struct{}

func NewTanh() *TanhActivation { return &TanhActivation{} }

func (t *TanhActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Tanh(input)
}
func (t *TanhActivation) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (t *TanhActivation) ZeroGrad()                    {}
func (t *TanhActivation) Name() string                 { return "Tanh" }

// LogSoftmaxLayer turns raw scores into row-wise log probabilities. Pair it
// with NLLLoss for the decomposed cross-entropy path.
type LogSoftmaxLayer struct{}

func NewLogSoftmax() *LogSoftmaxLayer { return &LogSoftmaxLayer{} }

func (l *LogSoftmaxLayer) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.LogSoftmax(input)
}
func (l *LogSoftmaxLayer) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (l *LogSoftmaxLayer) ZeroGrad()                    {}
func (l *LogSoftmaxLayer) Name() string                 { return "LogSoftmax" }
