package data

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// IDX magic numbers distinguish image files from label files.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// ReadIDXImages parses a local MNIST-format image file into a flat pixel
// buffer scaled to [0, 1], plus the per-example shape [1, rows, cols].
// Acquiring the files is the caller's problem; nothing is downloaded here.
func ReadIDXImages(filepath string) ([]float64, []int, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	var magic, numImages, numRows, numCols int32
	if err := binary.Read(file, binary.BigEndian, &magic); err != nil {
		return nil, nil, fmt.Errorf("reading magic from %s: %w", filepath, err)
	}
	if magic != idxImagesMagic {
		return nil, nil, fmt.Errorf("invalid magic number for images file %s: %d", filepath, magic)
	}
	for _, dst := range []*int32{&numImages, &numRows, &numCols} {
		if err := binary.Read(file, binary.BigEndian, dst); err != nil {
			return nil, nil, fmt.Errorf("reading header from %s: %w", filepath, err)
		}
	}

	raw := make([]byte, int(numImages)*int(numRows)*int(numCols))
	if _, err := io.ReadFull(file, raw); err != nil {
		return nil, nil, fmt.Errorf("reading %d images from %s: %w", numImages, filepath, err)
	}

	pixels := make([]float64, len(raw))
	for i, v := range raw {
		pixels[i] = float64(v) / 255.0
	}
	return pixels, []int{1, int(numRows), int(numCols)}, nil
}

// ReadIDXLabels parses a local MNIST-format label file into class indices.
func ReadIDXLabels(filepath string) ([]int, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var magic, numLabels int32
	if err := binary.Read(file, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic from %s: %w", filepath, err)
	}
	if magic != idxLabelsMagic {
		return nil, fmt.Errorf("invalid magic number for labels file %s: %d", filepath, magic)
	}
	if err := binary.Read(file, binary.BigEndian, &numLabels); err != nil {
		return nil, fmt.Errorf("reading header from %s: %w", filepath, err)
	}

	raw := make([]byte, numLabels)
	if _, err := io.ReadFull(file, raw); err != nil {
		return nil, fmt.Errorf("reading %d labels from %s: %w", numLabels, filepath, err)
	}

	labels := make([]int, len(raw))
	for i, v := range raw {
		labels[i] = int(v)
	}
	return labels, nil
}
