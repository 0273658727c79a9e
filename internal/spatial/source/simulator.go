package source

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/l4delivery"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
)

// MouseFrame is the desktop mouse state sampled once per frame. X and Y
// are pixels from the top-left corner of the view.
type MouseFrame struct {
	X, Y    float64
	Pressed bool
}

// Camera is a pinhole camera at Origin looking down +Z with +Y up.
type Camera struct {
	Origin r3.Vec
	Width  float64 // pixels
	Height float64 // pixels
	FovY   float64 // vertical field of view, radians
}

// DefaultCamera is a 1280x720 view with a 60 degree vertical field.
var DefaultCamera = Camera{Width: 1280, Height: 720, FovY: math.Pi / 3}

// Contains reports whether the pixel lies inside the view.
func (c Camera) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= c.Width && y <= c.Height
}

// Ray returns the unit direction through pixel (x, y).
func (c Camera) Ray(x, y float64) r3.Vec {
	t := math.Tan(c.FovY / 2)
	aspect := c.Width / c.Height
	nx := (2*x/c.Width - 1) * t * aspect
	ny := (1 - 2*y/c.Height) * t
	return r3.Unit(r3.Vec{X: nx, Y: ny, Z: 1})
}

// devicePoseDistance places the simulated hand roughly at arm's length.
const devicePoseDistance = 0.5

// Simulator converts mouse frames into raw samples the way an indirect
// pinch would arrive from the tracking source. The source never reports
// a start, so presses produce Active samples and inference synthesizes
// Began.
type Simulator struct {
	Camera Camera
	// Secondary duplicates every sample under a second raw id.
	Secondary bool

	interacting bool
	last        MouseFrame
	ray         r3.Vec
	startDir    r3.Vec
}

// NewSimulator creates a simulator for camera.
func NewSimulator(camera Camera) *Simulator {
	return &Simulator{Camera: camera}
}

// Interacting reports whether a press is in progress.
func (s *Simulator) Interacting() bool { return s.interacting }

// Step consumes one frame and returns the samples to send, if any.
func (s *Simulator) Step(f MouseFrame) []spatial.RawSample {
	if !s.Camera.Contains(f.X, f.Y) {
		return s.Interrupt()
	}
	s.ray = s.Camera.Ray(f.X, f.Y)

	var phase spatial.RawPhase
	switch {
	case f.Pressed && !s.interacting:
		s.interacting = true
		s.startDir = s.ray
		phase = spatial.RawActive
	case !f.Pressed && s.interacting:
		s.interacting = false
		phase = spatial.RawEnded
	case f.Pressed:
		// A held but motionless pointer sends nothing.
		if f.X == s.last.X && f.Y == s.last.Y {
			return nil
		}
		phase = spatial.RawActive
	default:
		s.last = f
		return nil
	}
	s.last = f
	return s.samples(phase)
}

// Interrupt ends an interaction in progress, e.g. when the pointer leaves
// the view or the input device goes away. Without the final Ended the
// gesture would stay in progress downstream.
func (s *Simulator) Interrupt() []spatial.RawSample {
	if !s.interacting {
		return nil
	}
	s.interacting = false
	return s.samples(spatial.RawEnded)
}

func (s *Simulator) samples(phase spatial.RawPhase) []spatial.RawSample {
	sample := spatial.RawSample{
		RawID:          0,
		Phase:          phase,
		RayOrigin:      s.Camera.Origin,
		RayDirection:   s.startDir,
		DevicePosition: r3.Add(s.Camera.Origin, r3.Scale(devicePoseDistance, s.ray)),
		DeviceRotation: l4delivery.LookRotation(s.ray),
		Kind:           spatial.KindIndirectPinch,
	}
	out := []spatial.RawSample{sample}
	if s.Secondary {
		sample.RawID = 1
		out = append(out, sample)
	}
	return out
}

// Run feeds frames to sink until ctx is done or frames closes; an
// interaction still in progress is then ended.
func (s *Simulator) Run(ctx context.Context, frames <-chan MouseFrame, sink pipeline.Sink) error {
	defer func() {
		if end := s.Interrupt(); len(end) > 0 {
			sink.OnBatch(end)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if batch := s.Step(f); len(batch) > 0 {
				sink.OnBatch(batch)
			}
		}
	}
}
