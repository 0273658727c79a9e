package l4delivery

import (
	"fmt"
	"sync"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// DefaultQueueDepth bounds a slot queue when no depth is configured. At a
// 90 Hz frame rate this is about a third of a second of backlog.
const DefaultQueueDepth = 32

// Queue is the FIFO of canonical events pending delivery for one slot.
// The producer appends; the driver pops at most one event per tick and
// inserts follow-ups at the head. Events are never reordered or merged.
type Queue struct {
	mu    sync.Mutex
	items []spatial.CanonicalEvent
	depth int

	// last is the phase at the tail, or the last phase that passed through
	// the queue once it is empty.
	last spatial.Phase

	dropped uint64
}

// NewQueue creates a queue holding at most depth producer events.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Queue{depth: depth, items: make([]spatial.CanonicalEvent, 0, depth)}
}

// Append enqueues events at the tail as a unit: either all are queued or,
// when they would exceed the depth limit, none are and ErrQueueFull is
// returned. Dropping a partial group could split a Cancelled from the
// Began that follows it.
func (q *Queue) Append(events ...spatial.CanonicalEvent) error {
	if len(events) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items)+len(events) > q.depth {
		q.dropped += uint64(len(events))
		return fmt.Errorf("%w: slot %d holds %d of %d", spatial.ErrQueueFull, events[0].Slot, len(q.items), q.depth)
	}
	q.items = append(q.items, events...)
	q.last = events[len(events)-1].Phase
	return nil
}

// PushFront inserts a follow-up so it is the next event delivered.
// Follow-ups are exempt from the depth limit: losing one would leave the
// slot stuck mid-gesture.
func (q *Queue) PushFront(e spatial.CanonicalEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		q.last = e.Phase
	}
	q.items = append(q.items, spatial.CanonicalEvent{})
	copy(q.items[1:], q.items)
	q.items[0] = e
}

// Pop removes and returns the head event.
func (q *Queue) Pop() (spatial.CanonicalEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return spatial.CanonicalEvent{}, false
	}
	e := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return e, true
}

// Peek returns the head event without removing it.
func (q *Queue) Peek() (spatial.CanonicalEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return spatial.CanonicalEvent{}, false
	}
	return q.items[0], true
}

// LastQueued returns the phase the slot will be in once everything queued
// has been delivered. Inference uses it as the "previous" phase.
func (q *Queue) LastQueued() spatial.Phase {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the number of events rejected by Append.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Phases returns the pending phases head first, for diagnostics.
func (q *Queue) Phases() []spatial.Phase {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]spatial.Phase, len(q.items))
	for i, e := range q.items {
		out[i] = e.Phase
	}
	return out
}

// Reset empties the queue and forgets the last phase.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
	q.last = spatial.PhaseNone
}
