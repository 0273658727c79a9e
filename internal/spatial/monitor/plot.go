package monitor

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/spatialpointer/internal/fsutil"
	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// slotSeries groups events by slot as (tick, phase) points.
func slotSeries(events []spatial.CanonicalEvent) (slots []int, series map[int]plotter.XYs) {
	series = make(map[int]plotter.XYs)
	for _, e := range events {
		if _, ok := series[e.Slot]; !ok {
			slots = append(slots, e.Slot)
		}
		series[e.Slot] = append(series[e.Slot], plotter.XY{X: float64(e.Tick), Y: float64(e.Phase)})
	}
	sort.Ints(slots)
	return slots, series
}

// PlotTimeline draws each slot's delivered phase against the tick as a
// step line and writes the image in the given format ("png", "svg", ...).
func PlotTimeline(w io.Writer, events []spatial.CanonicalEvent, title, format string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "tick"
	p.Y.Label.Text = "phase"
	p.Y.Min = -0.5
	p.Y.Max = float64(spatial.PhaseCancelled) + 0.5
	p.Y.Tick.Marker = plot.ConstantTicks([]plot.Tick{
		{Value: float64(spatial.PhaseNone), Label: spatial.PhaseNone.String()},
		{Value: float64(spatial.PhaseBegan), Label: spatial.PhaseBegan.String()},
		{Value: float64(spatial.PhaseMoved), Label: spatial.PhaseMoved.String()},
		{Value: float64(spatial.PhaseEnded), Label: spatial.PhaseEnded.String()},
		{Value: float64(spatial.PhaseCancelled), Label: spatial.PhaseCancelled.String()},
	})

	slots, series := slotSeries(events)
	for i, slot := range slots {
		line, err := plotter.NewLine(series[slot])
		if err != nil {
			return err
		}
		line.StepStyle = plotter.PostStep
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("slot %d", slot), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(14*vg.Inch, 5*vg.Inch, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveTimeline writes PlotTimeline output to path, creating parent
// directories. The format is taken from the file extension.
func SaveTimeline(fs fsutil.FileSystem, path string, events []spatial.CanonicalEvent, title string) error {
	format := filepath.Ext(path)
	if len(format) < 2 {
		return fmt.Errorf("output %q has no image extension", path)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := PlotTimeline(f, events, title, format[1:]); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
