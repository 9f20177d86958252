package utility

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go-grad/nn"
	"go-grad/tensor"
)

// ModelInspector prints architecture and parameter-count summaries for a
// sequential model.
type ModelInspector struct {
	model *nn.Sequential
}

func NewModelInspector(model *nn.Sequential) *ModelInspector {
	return &ModelInspector{model: model}
}

// Summary prints a per-layer table of parameter shapes and counts to stdout.
func (mi *ModelInspector) Summary() {
	mi.WriteSummary(os.Stdout)
}

func (mi *ModelInspector) WriteSummary(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Layer\tParameter\tShape\tParam #")
	fmt.Fprintln(w, "-----\t---------\t-----\t-------")

	paramNames := []string{"Weight", "Bias"}
	for _, layer := range mi.model.Layers() {
		params := layer.Parameters()
		if len(params) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t0\n", layer.Name())
			continue
		}
		for i, p := range params {
			name := fmt.Sprintf("Param %d", i)
			if i < len(paramNames) {
				name = paramNames[i]
			}
			label := layer.Name()
			if i > 0 {
				label = ""
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%d\n", label, name, p.GetShape(), tensor.Numel(p))
		}
	}
	w.Flush()

	total, trainable := mi.CountParameters()
	fmt.Fprintf(out, "Total Parameters: %d\n", total)
	fmt.Fprintf(out, "Trainable Parameters: %d\n", trainable)
}

// CountParameters returns total and trainable parameter counts.
func (mi *ModelInspector) CountParameters() (total, trainable int64) {
	for _, layer := range mi.model.Layers() {
		for _, p := range layer.Parameters() {
			n := int64(tensor.Numel(p))
			total += n
			if p.RequiresGrad {
				trainable += n
			}
		}
	}
	return total, trainable
}
