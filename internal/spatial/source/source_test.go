package source

import (
	"sync"
	"time"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/l1samples"
	"gonum.org/v1/gonum/spatial/r3"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// recordingSink captures batches and decode statistics.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]spatial.RawSample
	decode  l1samples.DecodeStats
}

func (r *recordingSink) OnBatch(samples []spatial.RawSample) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, samples)
}

func (r *recordingSink) CountDecode(s l1samples.DecodeStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decode.Records += s.Records
	r.decode.ZeroFill += s.ZeroFill
	r.decode.Truncated += s.Truncated
	r.decode.Rejected += s.Rejected
}

func (r *recordingSink) snapshot() ([][]spatial.RawSample, l1samples.DecodeStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]spatial.RawSample, len(r.batches))
	copy(out, r.batches)
	return out, r.decode
}

func sample(id int32, phase spatial.RawPhase) spatial.RawSample {
	return spatial.RawSample{
		RawID:          id,
		Phase:          phase,
		RayDirection:   r3.Vec{Z: 1},
		DevicePosition: r3.Vec{X: 0.1, Y: 1.2, Z: 0.3},
		DeviceRotation: spatial.IdentityRotation,
		Kind:           spatial.KindIndirectPinch,
	}
}
