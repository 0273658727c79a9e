package l4delivery

import (
	"fmt"
	"sync"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// Consumer receives delivered events. The driver calls Push at most once
// per slot per tick, from the tick goroutine only.
type Consumer interface {
	Push(e spatial.CanonicalEvent)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(e spatial.CanonicalEvent)

func (f ConsumerFunc) Push(e spatial.CanonicalEvent) { f(e) }

// Updater is implemented by consumers that keep per-update history. The
// driver calls BeginUpdate at the start of every tick, before any Push.
type Updater interface {
	BeginUpdate(tick uint64)
}

// Options configures a Driver.
type Options struct {
	// ProjectionDistance is the ray distance used for the interaction
	// rotation. Zero means DefaultProjectionDistance.
	ProjectionDistance float64

	// AssertInvariants panics on an illegal phase transition instead of
	// logging and dropping the event.
	AssertInvariants bool
}

// Stats counts driver activity.
type Stats struct {
	Ticks       uint64
	Delivered   uint64
	Synthesized uint64 // follow-ups inserted by the driver
	Violations  uint64
}

// Driver drains the slot queues once per tick and owns every slot's
// PointerState.
type Driver struct {
	queues   []*Queue
	consumer Consumer
	opts     Options

	mu     sync.RWMutex
	states []spatial.PointerState
	tick   uint64
	stats  Stats
}

// NewDriver creates a driver over queues, one per slot.
func NewDriver(queues []*Queue, consumer Consumer, opts Options) *Driver {
	if opts.ProjectionDistance <= 0 {
		opts.ProjectionDistance = DefaultProjectionDistance
	}
	d := &Driver{
		queues:   queues,
		consumer: consumer,
		opts:     opts,
		states:   make([]spatial.PointerState, len(queues)),
	}
	for i := range d.states {
		d.states[i] = freshState(i)
	}
	return d
}

func freshState(slot int) spatial.PointerState {
	return spatial.PointerState{
		Slot:                   slot,
		StartRayRotation:       spatial.IdentityRotation,
		InteractionRayRotation: spatial.IdentityRotation,
	}
}

// Tick delivers at most one queued event per slot and returns the events
// delivered, in slot order.
//
// Tick runs the following steps:
//  1. Tell an Updater consumer a new update has started.
//  2. Pop the head event of each slot queue.
//  3. Check it against the phase state machine.
//  4. Update the slot's PointerState and derived ray fields.
//  5. Push it to the consumer.
//  6. Insert follow-ups: Moved after Began, None after Ended/Cancelled.
func (d *Driver) Tick() []spatial.CanonicalEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tick++
	d.stats.Ticks++
	if u, ok := d.consumer.(Updater); ok {
		u.BeginUpdate(d.tick)
	}

	var delivered []spatial.CanonicalEvent
	for slot, q := range d.queues {
		e, ok := q.Pop()
		if !ok {
			continue
		}
		st := &d.states[slot]

		if err := d.checkTransition(st.Phase, e); err != nil {
			if d.opts.AssertInvariants {
				panic(err)
			}
			d.stats.Violations++
			monitoring.Logf("[delivery] %v; event dropped", err)
			continue
		}

		d.apply(st, &e)
		if d.consumer != nil {
			d.consumer.Push(e)
		}
		delivered = append(delivered, e)
		d.stats.Delivered++

		switch {
		case e.Phase == spatial.PhaseBegan:
			if head, ok := q.Peek(); !ok || head.Phase != spatial.PhaseMoved {
				q.PushFront(e.WithPhase(spatial.PhaseMoved))
				d.stats.Synthesized++
			}
		case e.Phase.Terminal():
			q.PushFront(e.WithPhase(spatial.PhaseNone))
			d.stats.Synthesized++
		}
		monitoring.Debugf("[delivery] tick %d %s", d.tick, e)
	}
	return delivered
}

func (d *Driver) checkTransition(from spatial.Phase, e spatial.CanonicalEvent) error {
	if spatial.ValidTransition(from, e.Phase) {
		return nil
	}
	return fmt.Errorf("%w: slot %d %s -> %s", spatial.ErrInvariantViolation, e.Slot, from, e.Phase)
}

func (d *Driver) apply(st *spatial.PointerState, e *spatial.CanonicalEvent) {
	if e.Phase == spatial.PhaseBegan {
		st.StartDevicePosition = e.DevicePosition
		st.StartRayRotation = LookRotation(e.RayDirection)
	}
	st.InteractionRayRotation = InteractionRotation(e.RayOrigin, e.RayDirection, e.DevicePosition, st.StartDevicePosition, d.opts.ProjectionDistance)

	e.Tick = d.tick
	e.StartDevicePosition = st.StartDevicePosition
	e.StartRayRotation = st.StartRayRotation
	e.InteractionRayRotation = st.InteractionRayRotation

	st.Phase = e.Phase
	st.Last = *e
	st.Deliveries++
}

// State returns a copy of the slot's PointerState.
func (d *Driver) State(slot int) (spatial.PointerState, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if slot < 0 || slot >= len(d.states) {
		return spatial.PointerState{}, false
	}
	return d.states[slot], true
}

// States returns a copy of every slot's PointerState.
func (d *Driver) States() []spatial.PointerState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]spatial.PointerState, len(d.states))
	copy(out, d.states)
	return out
}

// Idle reports whether slot has delivered None and has nothing queued,
// i.e. the slot may be released.
func (d *Driver) Idle(slot int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if slot < 0 || slot >= len(d.states) {
		return false
	}
	return d.states[slot].Phase == spatial.PhaseNone && d.states[slot].Deliveries > 0 && d.queues[slot].Len() == 0
}

// ResetSlot returns slot to its initial state and empties its queue.
func (d *Driver) ResetSlot(slot int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slot < 0 || slot >= len(d.states) {
		return
	}
	d.states[slot] = freshState(slot)
	d.queues[slot].Reset()
}

// CurrentTick returns the number of ticks run.
func (d *Driver) CurrentTick() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tick
}

// Stats returns a copy of the counters.
func (d *Driver) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}
