// Package l3phases infers canonical phases from the source's two-state
// raw phase. The source never reports Began and does not reliably report
// an end when a gesture is interrupted, so both are inferred from the
// raw phase and the last phase queued for the slot.
package l3phases

import (
	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// Transition is the rule table. It returns the canonical phases to queue,
// in order, for a raw phase given the last queued phase of the slot.
// restarted is the restart policy's verdict and only matters while a
// gesture is in progress.
//
//	(Active, Began|Moved)             → Moved, or Cancelled+Began on restart
//	(Active, None|Ended|Cancelled)    → Began
//	(Ended|Cancelled, Began|Moved)    → pass through
//	(Ended|Cancelled, None|Ended|...) → nothing; there is no gesture to end
func Transition(raw spatial.RawPhase, lastQueued spatial.Phase, restarted bool) []spatial.Phase {
	switch raw {
	case spatial.RawActive:
		if lastQueued.InProgress() {
			if restarted {
				return []spatial.Phase{spatial.PhaseCancelled, spatial.PhaseBegan}
			}
			return []spatial.Phase{spatial.PhaseMoved}
		}
		return []spatial.Phase{spatial.PhaseBegan}
	case spatial.RawEnded:
		if lastQueued.InProgress() {
			return []spatial.Phase{spatial.PhaseEnded}
		}
	case spatial.RawCancelled:
		if lastQueued.InProgress() {
			return []spatial.Phase{spatial.PhaseCancelled}
		}
	}
	return nil
}

// Stats counts inference outcomes.
type Stats struct {
	Began          uint64 // implicit Began synthesized
	Restarts       uint64 // stale gestures cancelled by the restart policy
	StrayTerminals uint64 // Ended/Cancelled with no gesture in progress
}

// Engine applies Transition per slot and remembers just enough about each
// slot's live gesture for the restart policy.
type Engine struct {
	policy   RestartPolicy
	gestures []Gesture
	stats    Stats
}

// NewEngine creates an engine for capacity slots. A nil policy disables
// restart detection.
func NewEngine(capacity int, policy RestartPolicy) *Engine {
	if policy == nil {
		policy = Never{}
	}
	return &Engine{
		policy:   policy,
		gestures: make([]Gesture, capacity),
	}
}

// Policy returns the restart policy in use.
func (e *Engine) Policy() RestartPolicy { return e.policy }

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats { return e.stats }

// Infer returns zero, one or two events for s on slot, given the phase
// last queued for that slot. It changes nothing: the caller passes the
// result to Commit once the events are queued, so a group dropped by a
// full queue neither counts nor moves the gesture memory.
func (e *Engine) Infer(slot int, s spatial.RawSample, lastQueued spatial.Phase) []spatial.CanonicalEvent {
	if slot < 0 || slot >= len(e.gestures) {
		return nil
	}
	g := e.gestures[slot]

	restarted := s.Phase == spatial.RawActive && lastQueued.InProgress() && e.policy.Restarted(g, s)
	phases := Transition(s.Phase, lastQueued, restarted)

	events := make([]spatial.CanonicalEvent, 0, len(phases))
	for _, p := range phases {
		// Only Moved, Ended and Cancelled copied from an explicit raw
		// phase count as pass-through; Began and restart cancels are
		// always inferred.
		synth := p == spatial.PhaseBegan || restarted
		events = append(events, spatial.EventFromSample(slot, p, s, synth))
	}
	return events
}

// Commit records that events, as returned by Infer for s, were queued.
// An empty events records a stray terminal.
func (e *Engine) Commit(slot int, s spatial.RawSample, events []spatial.CanonicalEvent) {
	if slot < 0 || slot >= len(e.gestures) {
		return
	}

	switch {
	case len(events) == 0:
		if s.Phase != spatial.RawActive {
			e.stats.StrayTerminals++
		}
		return
	case len(events) == 2 && events[0].Phase == spatial.PhaseCancelled:
		e.stats.Restarts++
		e.stats.Began++
	case events[0].Phase == spatial.PhaseBegan:
		e.stats.Began++
	}

	if s.Phase == spatial.RawActive {
		e.gestures[slot] = Gesture{Seen: true, Kind: s.Kind, LastSeen: s.Timestamp, LastBatch: s.Batch}
	} else {
		e.gestures[slot] = Gesture{}
	}
}

// Apply is Infer followed by Commit, for callers that cannot fail to
// queue the result.
func (e *Engine) Apply(slot int, s spatial.RawSample, lastQueued spatial.Phase) []spatial.CanonicalEvent {
	events := e.Infer(slot, s, lastQueued)
	e.Commit(slot, s, events)
	return events
}

// Gesture returns the remembered gesture of slot.
func (e *Engine) Gesture(slot int) Gesture {
	if slot < 0 || slot >= len(e.gestures) {
		return Gesture{}
	}
	return e.gestures[slot]
}

// Forget clears the gesture memory of slot. Called when the slot is
// released so nothing leaks into the next gesture on it.
func (e *Engine) Forget(slot int) {
	if slot >= 0 && slot < len(e.gestures) {
		e.gestures[slot] = Gesture{}
	}
}
