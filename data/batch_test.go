package data

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemorySourceValidation(t *testing.T) {
	_, err := NewInMemorySource([]int{2}, []float64{1, 2}, []int{0}, 0, 1, false)
	assert.Error(t, err, "zero batch size")

	_, err = NewInMemorySource([]int{0}, nil, []int{0}, 1, 1, false)
	assert.Error(t, err, "bad example shape")

	_, err = NewInMemorySource([]int{2}, []float64{1, 2, 3}, []int{0, 1}, 1, 1, false)
	assert.Error(t, err, "feature/label size mismatch")

	_, err = NewInMemorySource([]int{2}, nil, nil, 1, 1, false)
	assert.Error(t, err, "empty dataset")
}

func TestEpochCoversEveryExampleOnce(t *testing.T) {
	features := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	labels := []int{0, 1, 2, 3, 4}

	src, err := NewInMemorySource([]int{2}, features, labels, 2, 7, true)
	require.NoError(t, err)
	assert.Equal(t, 3, src.NumBatches())
	assert.Equal(t, 5, src.NumExamples())

	seen := []int{}
	batches := 0
	for {
		batch, ok := src.Next()
		if !ok {
			break
		}
		batches++
		assert.Equal(t, batch.Inputs.GetShape()[0], len(batch.Targets))
		assert.Equal(t, 2, batch.Inputs.GetShape()[1])
		seen = append(seen, batch.Targets...)
	}
	assert.Equal(t, 3, batches)

	sort.Ints(seen)
	assert.Equal(t, labels, seen, "every example appears exactly once per epoch")
}

func TestBatchCarriesMatchingFeatures(t *testing.T) {
	features := []float64{10, 11, 20, 21, 30, 31}
	labels := []int{1, 2, 3}

	src, err := NewInMemorySource([]int{2}, features, labels, 3, 1, true)
	require.NoError(t, err)
	batch, ok := src.Next()
	require.True(t, ok)

	// shuffled or not, example i's features must travel with its label
	for i, label := range batch.Targets {
		assert.Equal(t, float64(label*10), batch.Inputs.GetData()[i*2])
		assert.Equal(t, float64(label*10+1), batch.Inputs.GetData()[i*2+1])
	}
}

func TestResetRestartsEpoch(t *testing.T) {
	features := []float64{1, 2, 3, 4}
	labels := []int{0, 1}

	src, err := NewInMemorySource([]int{2}, features, labels, 2, 1, false)
	require.NoError(t, err)

	_, ok := src.Next()
	require.True(t, ok)
	_, ok = src.Next()
	assert.False(t, ok, "epoch exhausted")

	src.Reset()
	batch, ok := src.Next()
	require.True(t, ok)
	assert.Len(t, batch.Targets, 2)
}

func TestUnshuffledOrderIsStable(t *testing.T) {
	features := []float64{1, 2, 3}
	labels := []int{7, 8, 9}

	src, err := NewInMemorySource([]int{1}, features, labels, 3, 1, false)
	require.NoError(t, err)
	batch, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, []int{7, 8, 9}, batch.Targets)
}

func TestSeededShuffleIsReproducible(t *testing.T) {
	features := make([]float64, 32)
	labels := make([]int, 32)
	for i := range labels {
		labels[i] = i
	}

	collect := func(seed int64) []int {
		src, err := NewInMemorySource([]int{1}, features, labels, 8, seed, true)
		require.NoError(t, err)
		out := []int{}
		for {
			batch, ok := src.Next()
			if !ok {
				return out
			}
			out = append(out, batch.Targets...)
		}
	}

	assert.Equal(t, collect(3), collect(3))
	assert.NotEqual(t, collect(3), collect(4))
}

func TestTwoClustersIsSeparableAndSeeded(t *testing.T) {
	features, labels := TwoClusters(10, 3, 0.4, 5)
	require.Len(t, labels, 20)
	require.Len(t, features, 60)

	for i, label := range labels {
		for j := 0; j < 3; j++ {
			v := features[i*3+j]
			if label == 0 {
				assert.Positive(t, v)
			} else {
				assert.Negative(t, v)
			}
		}
	}

	again, _ := TwoClusters(10, 3, 0.4, 5)
	assert.Equal(t, features, again)
}

func writeIDXImages(t *testing.T, path string, images [][]byte, rows, cols int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(idxImagesMagic)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(len(images))))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(rows)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(cols)))
	for _, img := range images {
		buf.Write(img)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeIDXLabels(t *testing.T, path string, labels []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(idxLabelsMagic)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(len(labels))))
	buf.Write(labels)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReadIDXFiles(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images")
	labelsPath := filepath.Join(dir, "labels")

	writeIDXImages(t, imagesPath, [][]byte{
		{0, 255, 128, 64},
		{10, 20, 30, 40},
	}, 2, 2)
	writeIDXLabels(t, labelsPath, []byte{3, 9})

	pixels, shape, err := ReadIDXImages(imagesPath)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, shape)
	require.Len(t, pixels, 8)
	assert.Equal(t, 0.0, pixels[0])
	assert.Equal(t, 1.0, pixels[1])
	assert.InDelta(t, 128.0/255.0, pixels[2], 1e-12)

	labels, err := ReadIDXLabels(labelsPath)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 9}, labels)
}

func TestReadIDXRejectsWrongMagic(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images")
	labelsPath := filepath.Join(dir, "labels")

	writeIDXImages(t, imagesPath, [][]byte{{1}}, 1, 1)
	writeIDXLabels(t, labelsPath, []byte{1})

	// swapped files carry the other format's magic number
	_, _, err := ReadIDXImages(labelsPath)
	assert.Error(t, err)
	_, err = ReadIDXLabels(imagesPath)
	assert.Error(t, err)
}

func TestReadIDXTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(idxImagesMagic)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(100)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(28)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(28)))
	// header promises 100 images, body has none
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, _, err := ReadIDXImages(path)
	assert.Error(t, err)
}
