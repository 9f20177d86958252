package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Op is the closed set of operations a tensor can be produced by. Each variant
// has exactly one forward constructor below and one backward rule in
// BackwardRule; dispatch is by explicit matching, not runtime polymorphism.
type Op int

const (
	OpLeaf Op = iota
	OpAdd
	OpMul
	OpAddRows
	OpMatMul
	OpTranspose
	OpReshape
	OpPow
	OpMean
	OpReLU
	OpSigmoid
	OpTanh
	OpLogSoftmax
	OpNLLLoss
	OpCrossEntropy
)

var opNames = map[Op]string{
	OpLeaf:         "leaf",
	OpAdd:          "add",
	OpMul:          "mul",
	OpAddRows:      "add_rows",
	OpMatMul:       "matmul",
	OpTranspose:    "transpose",
	OpReshape:      "reshape",
	OpPow:          "pow",
	OpMean:         "mean",
	OpReLU:         "relu",
	OpSigmoid:      "sigmoid",
	OpTanh:         "tanh",
	OpLogSoftmax:   "log_softmax",
	OpNLLLoss:      "nll_loss",
	OpCrossEntropy: "cross_entropy",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// newNode wraps a forward result as a graph node. The output requires grad as
// soon as any input does, which is also what keeps the backward traversal off
// constant subgraphs.
func newNode(op Op, shape []int, data []float64, inputs ...*Tensor) *Tensor {
	out := &Tensor{
		shape:  append([]int{}, shape...),
		data:   data,
		op:     op,
		inputs: append([]*Tensor{}, inputs...),
		seq:    nextSeq(),
	}
	for _, in := range inputs {
		if in.RequiresGrad {
			out.RequiresGrad = true
			break
		}
	}
	return out
}

func shapeErr(op Op, detail string, shapes ...[]int) error {
	return &ShapeError{Op: op, Shapes: shapes, Detail: detail}
}

// adds two tensors element-wise
func Add(a, b *Tensor) (*Tensor, error) {
	if !IsSameSize(a, b) {
		return nil, shapeErr(OpAdd, "operands must match", a.shape, b.shape)
	}
	data := make([]float64, len(a.data))
	floats.AddTo(data, a.data, b.data)
	return newNode(OpAdd, a.shape, data, a, b), nil
}

// multiplies two tensors element-wise (Hadamard product)
func Mul(a, b *Tensor) (*Tensor, error) {
	if !IsSameSize(a, b) {
		return nil, shapeErr(OpMul, "operands must match", a.shape, b.shape)
	}
	data := make([]float64, len(a.data))
	floats.MulTo(data, a.data, b.data)
	return newNode(OpMul, a.shape, data, a, b), nil
}

// AddRows adds a vector [N] to every row of a matrix [B, N]. This is the bias
// broadcast of a dense layer; the reverse direction sums over the batch axis.
func AddRows(m, v *Tensor) (*Tensor, error) {
	if len(m.shape) != 2 || len(v.shape) != 1 || v.shape[0] != m.shape[1] {
		return nil, shapeErr(OpAddRows, "want [B, N] + [N]", m.shape, v.shape)
	}
	rows, cols := m.shape[0], m.shape[1]
	data := make([]float64, len(m.data))
	for i := 0; i < rows; i++ {
		floats.AddTo(data[i*cols:(i+1)*cols], m.data[i*cols:(i+1)*cols], v.data)
	}
	return newNode(OpAddRows, m.shape, data, m, v), nil
}

// matrix product [M, K] @ [K, N] -> [M, N]. the heavy lifting is gonum's.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, shapeErr(OpMatMul, "want 2D operands", a.shape, b.shape)
	}
	if a.shape[1] != b.shape[0] {
		return nil, shapeErr(OpMatMul, "inner dimensions mismatch", a.shape, b.shape)
	}
	m, k, n := a.shape[0], a.shape[1], b.shape[1]
	var out mat.Dense
	out.Mul(mat.NewDense(m, k, a.data), mat.NewDense(k, n, b.data))
	return newNode(OpMatMul, []int{m, n}, out.RawMatrix().Data, a, b), nil
}

// transposes a 2D tensor [M, N] -> [N, M]
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.shape) != 2 {
		return nil, shapeErr(OpTranspose, "want 2D operand", t.shape)
	}
	rows, cols := t.shape[0], t.shape[1]
	return newNode(OpTranspose, []int{cols, rows}, transposeData(t.data, rows, cols), t), nil
}

func transposeData(data []float64, rows, cols int) []float64 {
	out := make([]float64, len(data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = data[r*cols+c]
		}
	}
	return out
}

// reshapes a tensor to a new shape with the same element count
func Reshape(t *Tensor, shape []int) (*Tensor, error) {
	n := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, shapeErr(OpReshape, "non-positive dimension", t.shape, shape)
		}
		n *= dim
	}
	if n != Numel(t) {
		return nil, shapeErr(OpReshape, fmt.Sprintf("element count mismatch %d != %d", Numel(t), n), t.shape, shape)
	}
	out := newNode(OpReshape, shape, append([]float64{}, t.data...), t)
	out.inShape = append([]int{}, t.shape...)
	return out, nil
}

// raises every element to a fixed power
func Pow(t *Tensor, p float64) (*Tensor, error) {
	data := make([]float64, len(t.data))
	for i, v := range t.data {
		data[i] = math.Pow(v, p)
	}
	out := newNode(OpPow, t.shape, data, t)
	out.exponent = p
	return out, nil
}

// Mean reduces a tensor to the scalar average of its elements, shape [1].
func Mean(t *Tensor) (*Tensor, error) {
	n := Numel(t)
	if n == 0 {
		return nil, shapeErr(OpMean, "empty tensor", t.shape)
	}
	return newNode(OpMean, []int{1}, []float64{floats.Sum(t.data) / float64(n)}, t), nil
}

// element-wise rectifier: out = max(0, t)
func ReLU(t *Tensor) (*Tensor, error) {
	data := make([]float64, len(t.data))
	for i, v := range t.data {
		if v > 0 {
			data[i] = v
		}
	}
	return newNode(OpReLU, t.shape, data, t), nil
}

// element-wise logistic sigmoid: out = 1 / (1 + exp(-t))
func Sigmoid(t *Tensor) (*Tensor, error) {
	data := make([]float64, len(t.data))
	for i, v := range t.data {
		data[i] = 1.0 / (1.0 + math.Exp(-v))
	}
	return newNode(OpSigmoid, t.shape, data, t), nil
}

// element-wise hyperbolic tangent
func Tanh(t *Tensor) (*Tensor, error) {
	data := make([]float64, len(t.data))
	for i, v := range t.data {
		data[i] = math.Tanh(v)
	}
	return newNode(OpTanh, t.shape, data, t), nil
}

// LogSoftmax computes row-wise log probabilities for a [B, C] score matrix:
// log_softmax(x)_i = x_i - logsumexp(x). gonum's LogSumExp does the max shift,
// which is what keeps large-magnitude scores from overflowing.
func LogSoftmax(t *Tensor) (*Tensor, error) {
	if len(t.shape) != 2 {
		return nil, shapeErr(OpLogSoftmax, "want 2D [batch, classes]", t.shape)
	}
	rows, cols := t.shape[0], t.shape[1]
	data := make([]float64, len(t.data))
	for i := 0; i < rows; i++ {
		row := t.data[i*cols : (i+1)*cols]
		lse := floats.LogSumExp(row)
		for j, v := range row {
			data[i*cols+j] = v - lse
		}
	}
	return newNode(OpLogSoftmax, t.shape, data, t), nil
}

// NLLLoss maps [B, C] log probabilities and integer class targets to a scalar:
// loss = -mean_i(logProbs[i, target_i]). This is the decomposed half of the
// cross-entropy pair; feed it LogSoftmax output.
func NLLLoss(logProbs *Tensor, targets []int) (*Tensor, error) {
	if len(logProbs.shape) != 2 {
		return nil, shapeErr(OpNLLLoss, "want 2D [batch, classes]", logProbs.shape)
	}
	rows, cols := logProbs.shape[0], logProbs.shape[1]
	if len(targets) != rows {
		return nil, shapeErr(OpNLLLoss, fmt.Sprintf("%d targets for batch of %d", len(targets), rows), logProbs.shape)
	}
	sum := 0.0
	for i, target := range targets {
		if target < 0 || target >= cols {
			return nil, fmt.Errorf("nll_loss: target %d out of bounds for %d classes (batch item %d)", target, cols, i)
		}
		sum -= logProbs.data[i*cols+target]
	}
	out := newNode(OpNLLLoss, []int{1}, []float64{sum / float64(rows)}, logProbs)
	out.targets = append([]int{}, targets...)
	return out, nil
}

// CrossEntropy is the fused log-softmax + negative log likelihood over raw
// scores. Numerically this is the path to prefer: probabilities near 0 or 1
// are never materialized on the way to the loss.
func CrossEntropy(logits *Tensor, targets []int) (*Tensor, error) {
	if len(logits.shape) != 2 {
		return nil, shapeErr(OpCrossEntropy, "want 2D [batch, classes]", logits.shape)
	}
	rows, cols := logits.shape[0], logits.shape[1]
	if len(targets) != rows {
		return nil, shapeErr(OpCrossEntropy, fmt.Sprintf("%d targets for batch of %d", len(targets), rows), logits.shape)
	}

	logProbs := make([]float64, len(logits.data))
	sum := 0.0
	for i := 0; i < rows; i++ {
		row := logits.data[i*cols : (i+1)*cols]
		lse := floats.LogSumExp(row)
		for j, v := range row {
			logProbs[i*cols+j] = v - lse
		}
		target := targets[i]
		if target < 0 || target >= cols {
			return nil, fmt.Errorf("cross_entropy: target %d out of bounds for %d classes (batch item %d)", target, cols, i)
		}
		sum -= logProbs[i*cols+target]
	}

	out := newNode(OpCrossEntropy, []int{1}, []float64{sum / float64(rows)}, logits)
	out.targets = append([]int{}, targets...)
	out.cache = logProbs
	return out, nil
}

// BackwardRule computes the gradient contribution for each input of a node
// given the fully accumulated upstream gradient. The returned slices are read
// by the engine and summed into its own buffers, so aliasing is fine here.
func (t *Tensor) BackwardRule(upstream []float64) ([][]float64, error) {
	if t.released {
		return nil, fmt.Errorf("backward rule invoked on released %s node", t.op)
	}
	if len(upstream) != Numel(t) {
		return nil, fmt.Errorf("%s: upstream gradient has %d elements, output has %d", t.op, len(upstream), Numel(t))
	}

	switch t.op {
	case OpLeaf:
		return nil, nil

	case OpAdd:
		return [][]float64{upstream, upstream}, nil

	case OpMul:
		a, b := t.inputs[0], t.inputs[1]
		ga := make([]float64, len(upstream))
		gb := make([]float64, len(upstream))
		floats.MulTo(ga, upstream, b.data)
		floats.MulTo(gb, upstream, a.data)
		return [][]float64{ga, gb}, nil

	case OpAddRows:
		rows, cols := t.shape[0], t.shape[1]
		gv := make([]float64, cols)
		for i := 0; i < rows; i++ {
			floats.Add(gv, upstream[i*cols:(i+1)*cols])
		}
		return [][]float64{upstream, gv}, nil

	case OpMatMul:
		a, b := t.inputs[0], t.inputs[1]
		m, k := a.shape[0], a.shape[1]
		n := b.shape[1]
		up := mat.NewDense(m, n, upstream)
		// dA = dOut @ Bᵀ, dB = Aᵀ @ dOut
		var ga, gb mat.Dense
		ga.Mul(up, mat.NewDense(k, n, b.data).T())
		gb.Mul(mat.NewDense(m, k, a.data).T(), up)
		return [][]float64{ga.RawMatrix().Data, gb.RawMatrix().Data}, nil

	case OpTranspose:
		rows, cols := t.shape[0], t.shape[1]
		return [][]float64{transposeData(upstream, rows, cols)}, nil

	case OpReshape:
		return [][]float64{upstream}, nil

	case OpPow:
		x := t.inputs[0]
		g := make([]float64, len(upstream))
		for i, v := range x.data {
			g[i] = upstream[i] * t.exponent * math.Pow(v, t.exponent-1)
		}
		return [][]float64{g}, nil

	case OpMean:
		n := Numel(t.inputs[0])
		g := make([]float64, n)
		scale := upstream[0] / float64(n)
		for i := range g {
			g[i] = scale
		}
		return [][]float64{g}, nil

	case OpReLU:
		x := t.inputs[0]
		g := make([]float64, len(upstream))
		for i, v := range x.data {
			if v > 0 {
				g[i] = upstream[i]
			}
		}
		return [][]float64{g}, nil

	case OpSigmoid:
		g := make([]float64, len(upstream))
		for i, s := range t.data {
			g[i] = upstream[i] * s * (1 - s)
		}
		return [][]float64{g}, nil

	case OpTanh:
		g := make([]float64, len(upstream))
		for i, y := range t.data {
			g[i] = upstream[i] * (1 - y*y)
		}
		return [][]float64{g}, nil

	case OpLogSoftmax:
		// dx_j = dy_j - softmax_j * sum_i(dy_i), row-wise
		rows, cols := t.shape[0], t.shape[1]
		g := make([]float64, len(upstream))
		for i := 0; i < rows; i++ {
			rowUp := upstream[i*cols : (i+1)*cols]
			rowSum := floats.Sum(rowUp)
			for j := 0; j < cols; j++ {
				g[i*cols+j] = rowUp[j] - math.Exp(t.data[i*cols+j])*rowSum
			}
		}
		return [][]float64{g}, nil

	case OpNLLLoss:
		lp := t.inputs[0]
		rows, cols := lp.shape[0], lp.shape[1]
		g := make([]float64, len(lp.data))
		scale := upstream[0] / float64(rows)
		for i, target := range t.targets {
			g[i*cols+target] = -scale
		}
		return [][]float64{g}, nil

	case OpCrossEntropy:
		// softmax minus one-hot, scaled by the mean reduction
		logits := t.inputs[0]
		rows, cols := logits.shape[0], logits.shape[1]
		g := make([]float64, len(logits.data))
		scale := upstream[0] / float64(rows)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				p := math.Exp(t.cache[i*cols+j])
				if j == t.targets[i] {
					p -= 1.0
				}
				g[i*cols+j] = p * scale
			}
		}
		return [][]float64{g}, nil
	}

	return nil, fmt.Errorf("no backward rule for op %s", t.op)
}
