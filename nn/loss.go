package nn

import (
	"go-grad/tensor"
)

// CrossEntropyLoss computes the fused log-softmax + negative log likelihood
// over raw scores [batch, classes] and integer class targets. This is the
// numerically stable path; the decomposed LogSoftmax layer + NLLLoss pair
// below produces the same loss and the same gradients.
func CrossEntropyLoss(logits *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	if len(targets) == 0 {
		return zeroLoss()
	}
	return tensor.CrossEntropy(logits, targets)
}

// NLLLoss is the negative log likelihood over [batch, classes] log
// probabilities: loss = -mean_i(logProbs[i, target_i]).
func NLLLoss(logProbs *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	if len(targets) == 0 {
		return zeroLoss()
	}
	return tensor.NLLLoss(logProbs, targets)
}

// an empty batch contributes nothing: zero loss, no graph
func zeroLoss() (*tensor.Tensor, error) {
	return tensor.NewTensor([]int{1}, []float64{0})
}
