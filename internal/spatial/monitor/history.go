// Package monitor serves debug views of a running pipeline: a JSON slot
// snapshot, a live phase timeline rendered with go-echarts and a PNG
// timeline rendered with gonum/plot.
package monitor

import (
	"sync"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// DefaultHistory is the number of delivered events kept for the timeline.
const DefaultHistory = 4096

// History keeps the most recent delivered events in a ring. It
// implements pipeline.Recorder.
type History struct {
	mu      sync.Mutex
	ring    []spatial.CanonicalEvent
	next    int
	full    bool
	batches uint64
	samples uint64
}

// NewHistory creates a history holding up to n events.
func NewHistory(n int) *History {
	if n <= 0 {
		n = DefaultHistory
	}
	return &History{ring: make([]spatial.CanonicalEvent, n)}
}

func (h *History) RecordBatch(_ uint64, samples []spatial.RawSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches++
	h.samples += uint64(len(samples))
}

func (h *History) RecordDelivered(events []spatial.CanonicalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range events {
		h.ring[h.next] = e
		h.next++
		if h.next == len(h.ring) {
			h.next = 0
			h.full = true
		}
	}
}

// Events returns the kept events, oldest first.
func (h *History) Events() []spatial.CanonicalEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		out := make([]spatial.CanonicalEvent, h.next)
		copy(out, h.ring[:h.next])
		return out
	}
	out := make([]spatial.CanonicalEvent, 0, len(h.ring))
	out = append(out, h.ring[h.next:]...)
	return append(out, h.ring[:h.next]...)
}

// Received returns the batches and samples seen.
func (h *History) Received() (batches, samples uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.batches, h.samples
}
