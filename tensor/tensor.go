package tensor

import (
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a flat float64 buffer plus a shape, with the graph metadata the
// autograd engine traverses: the op that produced it, its ordered inputs and a
// creation sequence number (traversal order must be stable across runs).
type Tensor struct {
	shape        []int
	data         []float64
	Grad         *Tensor
	RequiresGrad bool

	op       Op
	inputs   []*Tensor
	seq      uint64
	released bool

	// state saved by the forward op for its backward rule
	exponent float64   // Pow
	targets  []int     // NLLLoss, CrossEntropy
	cache    []float64 // op-dependent forward values (outputs, probabilities)
	inShape  []int     // Reshape
}

// creation counter shared by every tensor, leaves included. ties during the
// backward traversal are broken by this order.
var seqCounter uint64

func nextSeq() uint64 {
	return atomic.AddUint64(&seqCounter, 1)
}

// ShapeError reports operand shapes incompatible with an op, detected at
// graph-construction time.
type ShapeError struct {
	Op     Op
	Shapes [][]int
	Detail string
}

func (e *ShapeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: incompatible shapes %v: %s", e.Op, e.Shapes, e.Detail)
	}
	return fmt.Sprintf("%s: incompatible shapes %v", e.Op, e.Shapes)
}

// utility function to check if two tensors have the same shape
func IsSameSize(a, b *Tensor) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

// builds a new leaf tensor with the given shape and data. an empty data slice
// allocates a zero-filled buffer.
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	total := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("shape %v contains non-positive dimension", shape)
		}
		total *= dim
	}
	if len(data) > 0 && total != len(data) {
		return nil, fmt.Errorf("shape %v implies %d elements but data has length %d", shape, total, len(data))
	}
	if len(data) == 0 {
		data = make([]float64, total)
	}

	return &Tensor{
		shape: append([]int{}, shape...),
		data:  append([]float64{}, data...),
		seq:   nextSeq(),
	}, nil
}

// CloneTensor returns a detached copy: same shape and data, no grad, no
// graph history.
func CloneTensor(t *Tensor) *Tensor {
	out := &Tensor{
		shape:        append([]int{}, t.shape...),
		data:         append([]float64{}, t.data...),
		RequiresGrad: t.RequiresGrad,
		seq:          nextSeq(),
	}
	return out
}

// returns the number of elements in a tensor
func Numel(t *Tensor) int {
	if t == nil {
		return 0
	}
	n := 1
	for _, s := range t.shape {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

// accessors, used by the engine, tests and debugging
func (t *Tensor) GetData() []float64 { return t.data }
func (t *Tensor) GetShape() []int    { return t.shape }
func (t *Tensor) Op() Op             { return t.op }
func (t *Tensor) Inputs() []*Tensor  { return t.inputs }
func (t *Tensor) Seq() uint64        { return t.seq }
func (t *Tensor) IsLeaf() bool       { return t.op == OpLeaf }
func (t *Tensor) Released() bool     { return t.released }

// Release drops the graph edges and op state of an interior node so the graph
// cannot be traversed again. Leaves keep their data and grad untouched.
func (t *Tensor) Release() {
	if t.op == OpLeaf {
		return
	}
	t.inputs = nil
	t.cache = nil
	t.targets = nil
	t.released = true
}

// returns a tensor with all elements set to 1
func OnesLike(t *Tensor) (*Tensor, error) {
	out, err := NewTensor(t.shape, nil)
	if err != nil {
		return nil, err
	}
	for i := range out.data {
		out.data[i] = 1
	}
	return out, nil
}

// AccumulateGrad sums the given buffer into the tensor's gradient, allocating
// it on first use. Gradients are never reset here; that is ZeroGrad's job.
func (t *Tensor) AccumulateGrad(data []float64) error {
	if len(data) != Numel(t) {
		return fmt.Errorf("gradient buffer has %d elements, tensor %v needs %d", len(data), t.shape, Numel(t))
	}
	if t.Grad == nil {
		g, err := NewTensor(t.shape, data)
		if err != nil {
			return err
		}
		t.Grad = g
		return nil
	}
	floats.Add(t.Grad.data, data)
	return nil
}

// sets the gradient of a tensor to zero, allocating the buffer if the tensor
// requires grad and has none yet
func (t *Tensor) ZeroGrad() {
	if t.Grad != nil {
		for i := range t.Grad.data {
			t.Grad.data[i] = 0
		}
		return
	}
	if t.RequiresGrad {
		g, err := NewTensor(t.shape, nil)
		if err == nil {
			t.Grad = g
		}
	}
}

// prints the tensor in readable format
func PrintTensor(t *Tensor) {
	if t == nil {
		fmt.Println("<nil tensor>")
		return
	}
	fmt.Printf("Tensor(shape=%v, data=%v, requires_grad=%v", t.shape, t.data, t.RequiresGrad)
	if t.Grad != nil {
		fmt.Printf(", grad_data=%v", t.Grad.data)
	}
	if t.op != OpLeaf {
		fmt.Printf(", op=%s", t.op)
	}
	fmt.Println(")")
}
