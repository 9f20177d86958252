package utility

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

// TrainingDashboard is a terminal UI for watching a run: live loss and
// accuracy curves, epoch progress and process stats. All methods are safe for
// concurrent use; renders are serialized behind one mutex.
type TrainingDashboard struct {
	grid *ui.Grid

	lossPlot      *widgets.Plot
	accuracyPlot  *widgets.Plot
	progressGauge *widgets.Gauge
	statusList    *widgets.List
	systemList    *widgets.List
	eventLog      *widgets.Paragraph

	lossHistory     []float64
	accuracyHistory []float64
	mu              sync.Mutex
}

// NewTrainingDashboard initializes termui and lays out the grid. Call Close
// when training ends, or the terminal stays in raw mode.
func NewTrainingDashboard(learningRate float64, batchSize, epochs int) (*TrainingDashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := &TrainingDashboard{
		// termui plots need at least two points to draw a line
		lossHistory:     []float64{0, 0},
		accuracyHistory: []float64{0, 0},
	}

	d.lossPlot = widgets.NewPlot()
	d.lossPlot.Title = "Training Loss"
	d.lossPlot.Data = [][]float64{d.lossHistory}
	d.lossPlot.LineColors[0] = ui.ColorRed

	d.accuracyPlot = widgets.NewPlot()
	d.accuracyPlot.Title = "Test Accuracy (%)"
	d.accuracyPlot.Data = [][]float64{d.accuracyHistory}
	d.accuracyPlot.LineColors[0] = ui.ColorGreen

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Epoch Progress"
	d.progressGauge.BarColor = ui.ColorBlue

	d.statusList = widgets.NewList()
	d.statusList.Title = "Training Status"

	d.systemList = widgets.NewList()
	d.systemList.Title = "System & Timing"

	hyperList := widgets.NewList()
	hyperList.Title = "Hyperparameters"
	hyperList.Rows = []string{
		fmt.Sprintf("Epochs: %d", epochs),
		fmt.Sprintf("Batch Size: %d", batchSize),
		fmt.Sprintf("Learn Rate: %.4f", learningRate),
	}

	d.eventLog = widgets.NewParagraph()
	d.eventLog.Title = "Event Log"

	d.grid = ui.NewGrid()
	termWidth, termHeight := ui.TerminalDimensions()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.4, ui.NewCol(0.5, d.lossPlot), ui.NewCol(0.5, d.accuracyPlot)),
		ui.NewRow(0.3, ui.NewCol(0.34, d.statusList), ui.NewCol(0.33, d.systemList), ui.NewCol(0.33, hyperList)),
		ui.NewRow(0.3, ui.NewRow(0.4, d.progressGauge), ui.NewRow(0.6, d.eventLog)),
	)

	return d, nil
}

// downsample averages a series into bins so the full history fits the plot
// width.
func downsample(series []float64, targetWidth int) []float64 {
	if targetWidth <= 0 || len(series) <= targetWidth {
		return series
	}
	out := make([]float64, targetWidth)
	binSize := float64(len(series)) / float64(targetWidth)
	for i := range out {
		start := int(float64(i) * binSize)
		end := int(float64(i+1) * binSize)
		if end > len(series) {
			end = len(series)
		}
		if start >= end {
			if i > 0 {
				out[i] = out[i-1]
			}
			continue
		}
		sum := 0.0
		for _, v := range series[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// UpdateProgress refreshes the status panels and re-renders.
func (d *TrainingDashboard) UpdateProgress(epoch, totalEpochs, batch, totalBatches int, avgLoss float64, epochStart, runStart time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.statusList.Rows = []string{
		fmt.Sprintf("Epoch: %d / %d", epoch, totalEpochs),
		fmt.Sprintf("Batch: %d / %d", batch, totalBatches),
		fmt.Sprintf("Avg Loss: %.4f", avgLoss),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	epochElapsed := time.Since(epochStart).Round(time.Second)
	var eta time.Duration
	if batch > 0 {
		perBatch := epochElapsed.Seconds() / float64(batch)
		eta = time.Duration(perBatch*float64(totalBatches-batch)) * time.Second
	}
	d.systemList.Rows = []string{
		fmt.Sprintf("Epoch Time: %v", epochElapsed),
		fmt.Sprintf("Total Time: %v", time.Since(runStart).Round(time.Second)),
		fmt.Sprintf("ETA (Epoch): %v", eta),
		"---",
		fmt.Sprintf("Heap Alloc: %d MiB", memStats.Alloc/1024/1024),
		fmt.Sprintf("Goroutines: %d", runtime.NumGoroutine()),
	}
	d.progressGauge.Percent = int(float64(batch) / float64(totalBatches) * 100)
	d.lossPlot.Data[0] = downsample(d.lossHistory, d.lossPlot.Inner.Dx())

	ui.Render(d.grid)
}

// AddLoss appends one loss sample to the history.
func (d *TrainingDashboard) AddLoss(loss float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lossHistory = append(d.lossHistory, loss)
}

// AddAccuracy appends an accuracy sample and re-renders both plots.
func (d *TrainingDashboard) AddAccuracy(accuracy float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accuracyHistory = append(d.accuracyHistory, accuracy)
	d.lossPlot.Data[0] = downsample(d.lossHistory, d.lossPlot.Inner.Dx())
	d.accuracyPlot.Data[0] = downsample(d.accuracyHistory, d.accuracyPlot.Inner.Dx())
	ui.Render(d.grid)
}

// Log replaces the event log panel text.
func (d *TrainingDashboard) Log(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventLog.Text = message
	ui.Render(d.grid)
}

func (d *TrainingDashboard) Close() { ui.Close() }

// Wait blocks until the user quits with q or ctrl-c.
func (d *TrainingDashboard) Wait() {
	for e := range ui.PollEvents() {
		if e.ID == "q" || e.ID == "<C-c>" {
			return
		}
	}
}
