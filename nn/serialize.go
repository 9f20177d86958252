package nn

import (
	"encoding/gob"
	"fmt"
	"os"

	"go-grad/tensor"
)

// checkpoint is the on-disk form of a model's parameters: one shape and one
// data buffer per parameter, in Parameters() order.
type checkpoint struct {
	Shapes [][]int
	Data   [][]float64
}

// Save writes the model's parameter values to a gob file. Only values are
// saved; the architecture must be rebuilt by the caller before Load.
func (s *Sequential) Save(filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("could not create checkpoint %s: %w", filepath, err)
	}
	defer file.Close()

	var ckpt checkpoint
	for _, p := range s.Parameters() {
		ckpt.Shapes = append(ckpt.Shapes, append([]int{}, p.GetShape()...))
		ckpt.Data = append(ckpt.Data, append([]float64{}, p.GetData()...))
	}
	if err := gob.NewEncoder(file).Encode(ckpt); err != nil {
		return fmt.Errorf("could not encode checkpoint %s: %w", filepath, err)
	}
	return nil
}

// Load copies parameter values from a gob file into the model in place,
// validating count and shapes first.
func (s *Sequential) Load(filepath string) error {
	file, err := os.Open(filepath)
	if err != nil {
		return fmt.Errorf("could not open checkpoint %s: %w", filepath, err)
	}
	defer file.Close()

	var ckpt checkpoint
	if err := gob.NewDecoder(file).Decode(&ckpt); err != nil {
		return fmt.Errorf("could not decode checkpoint %s: %w", filepath, err)
	}

	params := s.Parameters()
	if len(ckpt.Shapes) != len(params) {
		return fmt.Errorf("parameter count mismatch: checkpoint has %d, model has %d", len(ckpt.Shapes), len(params))
	}
	for i, p := range params {
		saved, err := tensor.NewTensor(ckpt.Shapes[i], ckpt.Data[i])
		if err != nil {
			return fmt.Errorf("checkpoint parameter %d is malformed: %w", i, err)
		}
		if !tensor.IsSameSize(p, saved) {
			return fmt.Errorf("shape mismatch for parameter %d: checkpoint %v, model %v", i, ckpt.Shapes[i], p.GetShape())
		}
		copy(p.GetData(), ckpt.Data[i])
	}
	return nil
}
