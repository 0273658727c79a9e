package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/pipeline"
	"github.com/banshee-data/spatialpointer/internal/timeutil"
)

func TestTickingSink(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.Clock = timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sink := &tickingSink{pipe: pipeline.New(cfg, nil)}

	s := spatial.RawSample{RawID: 3, Phase: spatial.RawActive, RayDirection: r3.Vec{Z: 1}}
	sink.OnBatch([]spatial.RawSample{s})
	s.Phase = spatial.RawEnded
	sink.OnBatch([]spatial.RawSample{s})
	assert.Equal(t, 2, sink.delivered)

	// Began, then the Moved follow-up; Ended and None drain.
	sink.drain()
	assert.Equal(t, 4, sink.delivered)
	assert.Zero(t, sink.pipe.Stats().LiveSlots)
}

func TestTickingSink_DrainStopsOnStuckSlot(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.Clock = timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sink := &tickingSink{pipe: pipeline.New(cfg, nil)}

	sink.OnBatch([]spatial.RawSample{{RawID: 3, Phase: spatial.RawActive, RayDirection: r3.Vec{Z: 1}}})
	sink.drain()
	assert.Equal(t, 1, sink.pipe.Stats().LiveSlots)
	assert.Equal(t, 2, sink.delivered) // Began, Moved
}
