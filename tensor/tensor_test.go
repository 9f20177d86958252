package tensor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTensor(t *testing.T) {
	tr, err := NewTensor([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, tr.GetShape())
	assert.Equal(t, 6, Numel(tr))
	assert.True(t, tr.IsLeaf())
	assert.False(t, tr.RequiresGrad)
}

func TestNewTensorAllocatesZeroData(t *testing.T) {
	tr, err := NewTensor([]int{2, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, tr.GetData())
}

func TestNewTensorRejectsBadShapes(t *testing.T) {
	_, err := NewTensor([]int{2, 0}, nil)
	assert.Error(t, err)

	_, err = NewTensor([]int{2, 2}, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestCloneTensorDetaches(t *testing.T) {
	orig, err := NewTensor([]int{2}, []float64{1, 2})
	require.NoError(t, err)
	orig.RequiresGrad = true
	doubled, err := Add(orig, orig)
	require.NoError(t, err)

	clone := CloneTensor(doubled)
	assert.Equal(t, doubled.GetData(), clone.GetData())
	assert.True(t, clone.IsLeaf(), "clone must carry no graph history")
	assert.Nil(t, clone.Grad)

	// independent buffers
	clone.GetData()[0] = 99
	assert.Equal(t, 2.0, doubled.GetData()[0])
}

func TestIsSameSize(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, nil)
	b, _ := NewTensor([]int{2, 3}, nil)
	c, _ := NewTensor([]int{3, 2}, nil)
	d, _ := NewTensor([]int{6}, nil)

	assert.True(t, IsSameSize(a, b))
	assert.False(t, IsSameSize(a, c))
	assert.False(t, IsSameSize(a, d))
}

func TestAccumulateGradSums(t *testing.T) {
	p, err := NewTensor([]int{2}, []float64{0, 0})
	require.NoError(t, err)
	p.RequiresGrad = true

	require.NoError(t, p.AccumulateGrad([]float64{1, 2}))
	require.NoError(t, p.AccumulateGrad([]float64{0.5, -1}))
	assert.Equal(t, []float64{1.5, 1}, p.Grad.GetData())

	assert.Error(t, p.AccumulateGrad([]float64{1, 2, 3}))
}

func TestZeroGrad(t *testing.T) {
	p, err := NewTensor([]int{2}, []float64{1, 2})
	require.NoError(t, err)
	p.RequiresGrad = true

	// allocates the buffer when absent
	p.ZeroGrad()
	require.NotNil(t, p.Grad)
	assert.Equal(t, []float64{0, 0}, p.Grad.GetData())

	require.NoError(t, p.AccumulateGrad([]float64{3, 4}))
	p.ZeroGrad()
	assert.Equal(t, []float64{0, 0}, p.Grad.GetData())
}

func TestReleaseOnlyTouchesInteriorNodes(t *testing.T) {
	x, err := NewTensor([]int{2}, []float64{1, 2})
	require.NoError(t, err)
	x.RequiresGrad = true
	sum, err := Add(x, x)
	require.NoError(t, err)

	sum.Release()
	assert.True(t, sum.Released())
	assert.Empty(t, sum.Inputs())

	x.Release()
	assert.False(t, x.Released(), "leaves survive release")
}

func TestCreationOrderIsMonotonic(t *testing.T) {
	a, _ := NewTensor([]int{1}, []float64{1})
	b, _ := NewTensor([]int{1}, []float64{2})
	sum, err := Add(a, b)
	require.NoError(t, err)

	assert.Less(t, a.Seq(), b.Seq())
	assert.Less(t, b.Seq(), sum.Seq())
}

func TestShapeErrorMessage(t *testing.T) {
	err := &ShapeError{Op: OpMatMul, Shapes: [][]int{{2, 3}, {2, 3}}, Detail: "inner dimensions mismatch"}
	assert.Contains(t, err.Error(), "matmul")
	assert.Contains(t, err.Error(), "[2 3]")

	if diff := cmp.Diff([][]int{{2, 3}, {2, 3}}, err.Shapes); diff != "" {
		t.Errorf("shapes mismatch (-want +got):\n%s", diff)
	}
}
