package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/spatialpointer/internal/httputil"
	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/l5device"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
)

// Source is the pipeline surface the monitor reads.
type Source interface {
	Stats() pipeline.Stats
	Slots() []pipeline.SlotView
}

// Monitor serves debug routes for one pipeline.
type Monitor struct {
	src     Source
	device  *l5device.Device
	history *History
}

// New creates a monitor. device may be nil.
func New(src Source, device *l5device.Device, history *History) *Monitor {
	if history == nil {
		history = NewHistory(DefaultHistory)
	}
	return &Monitor{src: src, device: device, history: history}
}

// History returns the event ring; register it with the pipeline as a
// recorder.
func (m *Monitor) History() *History { return m.history }

// SlotJSON is one slot in the snapshot.
type SlotJSON struct {
	Slot       int      `json:"slot"`
	RawID      int32    `json:"raw_id"`
	Live       bool     `json:"live"`
	Phase      string   `json:"phase"`
	Pending    []string `json:"pending"`
	Dropped    uint64   `json:"dropped"`
	Deliveries uint64   `json:"deliveries"`
}

// ControlJSON is one device control in the snapshot.
type ControlJSON struct {
	Slot          int        `json:"slot"`
	InteractionID int        `json:"interaction_id"`
	Phase         string     `json:"phase"`
	Tracked       bool       `json:"tracked"`
	Position      [3]float64 `json:"position"`
}

// Snapshot is the JSON body of /debug/pointers.
type Snapshot struct {
	Stats    pipeline.Stats `json:"stats"`
	Received struct {
		Batches uint64 `json:"batches"`
		Samples uint64 `json:"samples"`
	} `json:"received"`
	Slots    []SlotJSON    `json:"slots"`
	Controls []ControlJSON `json:"controls,omitempty"`
	Primary  *ControlJSON  `json:"primary,omitempty"`
}

// Snapshot collects the current state.
func (m *Monitor) Snapshot() Snapshot {
	var snap Snapshot
	snap.Stats = m.src.Stats()
	snap.Received.Batches, snap.Received.Samples = m.history.Received()
	for _, v := range m.src.Slots() {
		s := SlotJSON{
			Slot:       v.Slot,
			RawID:      v.RawID,
			Live:       v.Live,
			Phase:      v.State.Phase.String(),
			Pending:    []string{},
			Dropped:    v.Dropped,
			Deliveries: v.State.Deliveries,
		}
		for _, p := range v.Pending {
			s.Pending = append(s.Pending, p.String())
		}
		snap.Slots = append(snap.Slots, s)
	}
	if m.device != nil {
		for _, c := range m.device.Controls() {
			snap.Controls = append(snap.Controls, controlJSON(c))
		}
		p := controlJSON(m.device.Primary())
		snap.Primary = &p
	}
	return snap
}

func controlJSON(c l5device.Control) ControlJSON {
	pos := c.Event.DevicePosition
	return ControlJSON{
		Slot:          c.Slot,
		InteractionID: c.InteractionID,
		Phase:         c.Phase.String(),
		Tracked:       c.Tracked,
		Position:      [3]float64{pos.X, pos.Y, pos.Z},
	}
}

// AttachAdminRoutes registers the monitor under /debug/pointers.
func (m *Monitor) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("pointers", "Pointer slots, queues and device state (JSON)", m.handleSnapshot)
	debug.HandleFunc("pointers/timeline", "Delivered phase timeline", m.handleTimeline)
	debug.HandleFunc("pointers/timeline.png", "Delivered phase timeline (PNG)", m.handleTimelinePNG)
}

func (m *Monitor) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, m.Snapshot())
}

// lastN trims events to the most recent n when the query asks for it.
func lastN(r *http.Request, events []spatial.CanonicalEvent) ([]spatial.CanonicalEvent, error) {
	v := r.URL.Query().Get("last")
	if v == "" {
		return events, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("invalid last=%q", v)
	}
	if n < len(events) {
		events = events[len(events)-n:]
	}
	return events, nil
}

func (m *Monitor) handleTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := lastN(r, m.history.Events())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	line := TimelineChart(events)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (m *Monitor) handleTimelinePNG(w http.ResponseWriter, r *http.Request) {
	events, err := lastN(r, m.history.Events())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := PlotTimeline(&buf, events, "delivered phases", "png"); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// TimelineChart builds a go-echarts line chart of phase per slot over
// the ticks present in events.
func TimelineChart(events []spatial.CanonicalEvent) *charts.Line {
	var ticks []uint64
	seen := make(map[uint64]int)
	for _, e := range events {
		if _, ok := seen[e.Tick]; !ok {
			seen[e.Tick] = len(ticks)
			ticks = append(ticks, e.Tick)
		}
	}

	slots, _ := slotSeries(events)
	data := make(map[int][]opts.LineData, len(slots))
	for _, slot := range slots {
		// Gaps are ticks with no delivery for the slot.
		data[slot] = make([]opts.LineData, len(ticks))
		for i := range data[slot] {
			data[slot][i] = opts.LineData{Value: "-"}
		}
	}
	for _, e := range events {
		data[e.Slot][seen[e.Tick]] = opts.LineData{Value: int(e.Phase), Name: e.Phase.String()}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pointer phases", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Delivered phases", Subtitle: fmt.Sprintf("%d events, %d ticks", len(events), len(ticks))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "phase", Min: 0, Max: int(spatial.PhaseCancelled)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(ticks)
	for _, slot := range slots {
		line.AddSeries(fmt.Sprintf("slot %d", slot), data[slot])
	}
	return line
}
