// Package data feeds the training loop: finite, restartable batch sources
// over in-memory examples, with shuffling owned by the source rather than the
// engine.
package data

import (
	"fmt"
	"math/rand"

	"go-grad/tensor"
)

// Batch is one slice of examples: a [batch, features...] tensor plus integer
// class targets.
type Batch struct {
	Inputs  *tensor.Tensor
	Targets []int
}

// Source yields batches until the epoch is exhausted, then needs a Reset.
type Source interface {
	Next() (Batch, bool)
	Reset()
	NumBatches() int
}

// InMemorySource batches a flat example buffer. Each Reset starts a new epoch
// and, if shuffling, draws a fresh permutation from the seeded generator, so
// a given seed always replays the same sequence of epochs.
type InMemorySource struct {
	exampleShape []int // shape of a single example, e.g. [4] or [1, 28, 28]
	exampleSize  int
	features     []float64
	labels       []int
	batchSize    int
	shuffle      bool
	rng          *rand.Rand
	order        []int
	pos          int
}

func NewInMemorySource(exampleShape []int, features []float64, labels []int, batchSize int, seed int64, shuffle bool) (*InMemorySource, error) {
	size := 1
	for _, dim := range exampleShape {
		if dim <= 0 {
			return nil, fmt.Errorf("data: example shape %v contains non-positive dimension", exampleShape)
		}
		size *= dim
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("data: batch size must be positive, got %d", batchSize)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("data: no examples provided")
	}
	if len(features) != size*len(labels) {
		return nil, fmt.Errorf("data: %d labels with example shape %v imply %d feature values, got %d",
			len(labels), exampleShape, size*len(labels), len(features))
	}

	s := &InMemorySource{
		exampleShape: append([]int{}, exampleShape...),
		exampleSize:  size,
		features:     features,
		labels:       labels,
		batchSize:    batchSize,
		shuffle:      shuffle,
		rng:          rand.New(rand.NewSource(seed)),
	}
	s.Reset()
	return s, nil
}

// Next returns the next batch of the current epoch. The second return is
// false once the epoch is exhausted.
func (s *InMemorySource) Next() (Batch, bool) {
	if s.pos >= len(s.order) {
		return Batch{}, false
	}
	end := s.pos + s.batchSize
	if end > len(s.order) {
		end = len(s.order)
	}
	indices := s.order[s.pos:end]
	s.pos = end

	buf := make([]float64, len(indices)*s.exampleSize)
	targets := make([]int, len(indices))
	for i, idx := range indices {
		copy(buf[i*s.exampleSize:(i+1)*s.exampleSize], s.features[idx*s.exampleSize:(idx+1)*s.exampleSize])
		targets[i] = s.labels[idx]
	}

	shape := append([]int{len(indices)}, s.exampleShape...)
	inputs, err := tensor.NewTensor(shape, buf)
	if err != nil {
		// shapes were validated at construction, so this cannot happen
		panic(fmt.Sprintf("data: batch tensor construction failed: %v", err))
	}
	return Batch{Inputs: inputs, Targets: targets}, true
}

// Reset starts a new epoch over the same examples.
func (s *InMemorySource) Reset() {
	if s.shuffle {
		s.order = s.rng.Perm(len(s.labels))
	} else if s.order == nil {
		s.order = make([]int, len(s.labels))
		for i := range s.order {
			s.order[i] = i
		}
	}
	s.pos = 0
}

func (s *InMemorySource) NumBatches() int {
	return (len(s.labels) + s.batchSize - 1) / s.batchSize
}

func (s *InMemorySource) NumExamples() int {
	return len(s.labels)
}

// TwoClusters builds a linearly separable 2-class dataset: n examples per
// class around mirrored centers ±1 with the given spread. Useful as a small
// training fixture where convergence is guaranteed.
func TwoClusters(n, dim int, spread float64, seed int64) ([]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	features := make([]float64, 2*n*dim)
	labels := make([]int, 2*n)
	for i := 0; i < 2*n; i++ {
		center := 1.0
		if i >= n {
			center = -1.0
			labels[i] = 1
		}
		for j := 0; j < dim; j++ {
			features[i*dim+j] = center + spread*(2*rng.Float64()-1)
		}
	}
	return features, labels
}
