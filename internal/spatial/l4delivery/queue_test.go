package l4delivery

import (
	"errors"
	"testing"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/google/go-cmp/cmp"
)

func ev(slot int, p spatial.Phase) spatial.CanonicalEvent {
	return spatial.CanonicalEvent{Slot: slot, Phase: p, DeviceRotation: spatial.IdentityRotation}
}

func mustAppend(t *testing.T, q *Queue, events ...spatial.CanonicalEvent) {
	t.Helper()
	if err := q.Append(events...); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestQueueFIFO(t *testing.T) {
	t.Parallel()
	q := NewQueue(4)

	mustAppend(t, q, ev(0, spatial.PhaseBegan), ev(0, spatial.PhaseMoved))
	mustAppend(t, q, ev(0, spatial.PhaseEnded))
	if got := q.LastQueued(); got != spatial.PhaseEnded {
		t.Errorf("LastQueued() = %s, want ended", got)
	}

	for _, want := range []spatial.Phase{spatial.PhaseBegan, spatial.PhaseMoved, spatial.PhaseEnded} {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() empty, want %s", want)
		}
		if e.Phase != want {
			t.Errorf("Pop() = %s, want %s", e.Phase, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on a drained queue returned an event")
	}
	// The last phase survives draining.
	if got := q.LastQueued(); got != spatial.PhaseEnded {
		t.Errorf("LastQueued() after drain = %s, want ended", got)
	}
}

func TestQueueAppendAllOrNothing(t *testing.T) {
	t.Parallel()
	q := NewQueue(2)

	mustAppend(t, q, ev(1, spatial.PhaseBegan))
	err := q.Append(ev(1, spatial.PhaseCancelled), ev(1, spatial.PhaseBegan))
	if !errors.Is(err, spatial.ErrQueueFull) {
		t.Fatalf("Append past depth: err = %v, want ErrQueueFull", err)
	}
	if got := q.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if got := q.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if got := q.LastQueued(); got != spatial.PhaseBegan {
		t.Errorf("LastQueued() = %s, want began", got)
	}
}

func TestQueuePushFront(t *testing.T) {
	t.Parallel()
	q := NewQueue(1)

	mustAppend(t, q, ev(0, spatial.PhaseBegan))
	// Follow-ups ignore the depth limit and do not move the tail.
	q.PushFront(ev(0, spatial.PhaseNone))
	if diff := cmp.Diff([]spatial.Phase{spatial.PhaseNone, spatial.PhaseBegan}, q.Phases()); diff != "" {
		t.Errorf("Phases() mismatch (-want +got):\n%s", diff)
	}
	if got := q.LastQueued(); got != spatial.PhaseBegan {
		t.Errorf("LastQueued() = %s, want began", got)
	}

	q.Reset()
	q.PushFront(ev(0, spatial.PhaseMoved))
	if got := q.LastQueued(); got != spatial.PhaseMoved {
		t.Errorf("push into an empty queue should set the tail, LastQueued() = %s", got)
	}

	head, ok := q.Peek()
	if !ok || head.Phase != spatial.PhaseMoved {
		t.Errorf("Peek() = %s, %v; want moved", head.Phase, ok)
	}
	if got := q.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestQueueReset(t *testing.T) {
	t.Parallel()
	q := NewQueue(0)
	mustAppend(t, q, ev(0, spatial.PhaseBegan))
	q.Reset()
	if q.Len() != 0 || q.LastQueued() != spatial.PhaseNone {
		t.Errorf("after Reset: Len() = %d, LastQueued() = %s", q.Len(), q.LastQueued())
	}
	if q.depth != DefaultQueueDepth {
		t.Errorf("depth = %d, want default %d", q.depth, DefaultQueueDepth)
	}
}
