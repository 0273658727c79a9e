package source

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/l4delivery"
	"github.com/banshee-data/spatialpointer/internal/spatial/l5device"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
	"github.com/banshee-data/spatialpointer/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func phasesOf(batch []spatial.RawSample) []spatial.RawPhase {
	var out []spatial.RawPhase
	for _, s := range batch {
		out = append(out, s.Phase)
	}
	return out
}

func TestCamera_Ray(t *testing.T) {
	t.Parallel()
	c := DefaultCamera
	centre := c.Ray(c.Width/2, c.Height/2)
	assert.InDelta(t, 0, centre.X, 1e-12)
	assert.InDelta(t, 0, centre.Y, 1e-12)
	assert.InDelta(t, 1, centre.Z, 1e-12)

	top := c.Ray(c.Width/2, 0)
	assert.InDelta(t, c.FovY/2, math.Atan2(top.Y, top.Z), 1e-9)
	assert.Greater(t, c.Ray(c.Width, c.Height/2).X, 0.0)

	assert.True(t, c.Contains(0, 0))
	assert.False(t, c.Contains(-1, 10))
	assert.False(t, c.Contains(10, c.Height+1))
}

func TestSimulator_PressDragRelease(t *testing.T) {
	t.Parallel()
	s := NewSimulator(DefaultCamera)

	assert.Empty(t, s.Step(MouseFrame{X: 640, Y: 360}), "hover sends nothing")

	press := s.Step(MouseFrame{X: 640, Y: 360, Pressed: true})
	require.Len(t, press, 1)
	assert.Equal(t, spatial.RawActive, press[0].Phase)
	assert.Equal(t, spatial.KindIndirectPinch, press[0].Kind)
	assert.True(t, s.Interacting())

	assert.Empty(t, s.Step(MouseFrame{X: 640, Y: 360, Pressed: true}), "no sample while motionless")

	drag := s.Step(MouseFrame{X: 700, Y: 300, Pressed: true})
	require.Len(t, drag, 1)
	assert.Equal(t, spatial.RawActive, drag[0].Phase)
	// The ray stays at the press; the device follows the mouse.
	assert.Equal(t, press[0].RayDirection, drag[0].RayDirection)
	assert.NotEqual(t, press[0].DevicePosition, drag[0].DevicePosition)
	assert.InDelta(t, devicePoseDistance, r3.Norm(drag[0].DevicePosition), 1e-9)

	release := s.Step(MouseFrame{X: 700, Y: 300})
	assert.Equal(t, []spatial.RawPhase{spatial.RawEnded}, phasesOf(release))
	assert.False(t, s.Interacting())
}

func TestSimulator_LeavingViewEndsInteraction(t *testing.T) {
	t.Parallel()
	s := NewSimulator(DefaultCamera)
	s.Step(MouseFrame{X: 10, Y: 10, Pressed: true})

	out := s.Step(MouseFrame{X: -5, Y: 10, Pressed: true})
	assert.Equal(t, []spatial.RawPhase{spatial.RawEnded}, phasesOf(out))
	assert.Empty(t, s.Step(MouseFrame{X: -6, Y: 10, Pressed: true}))
	assert.Empty(t, s.Interrupt())
}

func TestSimulator_Secondary(t *testing.T) {
	t.Parallel()
	s := NewSimulator(DefaultCamera)
	s.Secondary = true
	out := s.Step(MouseFrame{X: 100, Y: 100, Pressed: true})
	require.Len(t, out, 2)
	assert.Equal(t, int32(0), out[0].RawID)
	assert.Equal(t, int32(1), out[1].RawID)
}

func TestSimulator_RunDrivesDevice(t *testing.T) {
	t.Parallel()
	dev := l5device.New(2)
	cfg := pipeline.DefaultConfig()
	cfg.Clock = timeutil.NewMockClock(epoch)
	p := pipeline.New(cfg, dev)

	frames := make(chan MouseFrame, 4)
	frames <- MouseFrame{X: 640, Y: 360, Pressed: true}
	frames <- MouseFrame{X: 650, Y: 360, Pressed: true}
	close(frames)

	s := NewSimulator(DefaultCamera)
	require.NoError(t, s.Run(context.Background(), frames, p))
	assert.False(t, s.Interacting(), "closing the stream ends the interaction")

	var got []spatial.Phase
	for i := 0; i < 6; i++ {
		for _, e := range p.Tick() {
			got = append(got, e.Phase)
		}
	}
	assert.Equal(t, []spatial.Phase{
		spatial.PhaseBegan, spatial.PhaseMoved, spatial.PhaseEnded, spatial.PhaseNone,
	}, got)
	assert.Equal(t, spatial.PhaseNone, dev.Primary().Phase)
	assert.Equal(t, uint64(4), dev.Pushes())

	// The start ray rotation faces the press direction.
	st, ok := dev.Control(0)
	require.True(t, ok)
	fwd := l4delivery.Rotate(st.Event.StartRayRotation, r3.Vec{Z: 1})
	assert.InDelta(t, 1, fwd.Z, 1e-9)
}
