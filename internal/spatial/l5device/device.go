// Package l5device is the reference consumer of delivered pointer events:
// a virtual input device with one control per slot and a primary pointer
// that mirrors whichever slot currently drives it.
package l5device

import (
	"sync"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// Control is the consumer-facing state of one pointer.
type Control struct {
	Slot          int
	InteractionID int // 0 while no touch is present
	Phase         spatial.Phase
	Tracked       bool
	TrackingState spatial.TrackingState
	Event         spatial.CanonicalEvent

	began bool
	ended bool
}

// BeganThisUpdate reports whether the control entered Began during the
// current update.
func (c Control) BeganThisUpdate() bool { return c.began }

// EndedThisUpdate reports whether the control entered Ended or Cancelled
// during the current update.
func (c Control) EndedThisUpdate() bool { return c.ended }

// IsInProgress reports whether the control is in Began or Moved.
func (c Control) IsInProgress() bool { return c.Phase.InProgress() }

func (c *Control) set(e spatial.CanonicalEvent) {
	c.Phase = e.Phase
	c.Event = e
	c.Tracked = e.IsTracked()
	c.TrackingState = e.TrackingState()
	if e.Phase == spatial.PhaseNone {
		c.InteractionID = 0
	} else {
		c.InteractionID = e.InteractionID()
	}
	if e.Phase == spatial.PhaseBegan {
		c.began = true
	}
	if e.Phase.Terminal() {
		c.ended = true
	}
}

// Device implements l4delivery.Consumer and l4delivery.Updater.
type Device struct {
	mu       sync.RWMutex
	controls []Control
	primary  Control
	update   uint64
	pushes   uint64
	onUpdate []func(slot int, c Control)
}

// New creates a device with one control per slot.
func New(slots int) *Device {
	d := &Device{controls: make([]Control, slots)}
	d.resetLocked()
	return d
}

// OnChange registers fn to be called, outside the device lock, after a
// control changes. The primary is reported with slot -1.
func (d *Device) OnChange(fn func(slot int, c Control)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUpdate = append(d.onUpdate, fn)
}

// BeginUpdate clears the per-update began/ended history.
func (d *Device) BeginUpdate(tick uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.update = tick
	for i := range d.controls {
		d.controls[i].began = false
		d.controls[i].ended = false
	}
	d.primary.began = false
	d.primary.ended = false
}

// Push applies a delivered event to its slot control and, when the
// primary is idle or already follows that slot, to the primary.
func (d *Device) Push(e spatial.CanonicalEvent) {
	d.mu.Lock()
	if e.Slot < 0 || e.Slot >= len(d.controls) {
		d.mu.Unlock()
		return
	}
	d.pushes++
	c := &d.controls[e.Slot]
	c.set(e)
	changed := *c

	primaryChanged := false
	adopt := d.primary.Phase.Idle() && e.Phase == spatial.PhaseBegan
	follow := d.primary.Phase != spatial.PhaseNone && d.primary.Slot == e.Slot
	if adopt || follow {
		d.primary.Slot = e.Slot
		d.primary.set(e)
		primaryChanged = true
	}
	primary := d.primary
	hooks := d.onUpdate
	d.mu.Unlock()

	for _, fn := range hooks {
		fn(e.Slot, changed)
		if primaryChanged {
			fn(-1, primary)
		}
	}
}

// Control returns a copy of the slot control.
func (d *Device) Control(slot int) (Control, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if slot < 0 || slot >= len(d.controls) {
		return Control{}, false
	}
	return d.controls[slot], true
}

// Controls returns a copy of every slot control.
func (d *Device) Controls() []Control {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Control, len(d.controls))
	copy(out, d.controls)
	return out
}

// Primary returns a copy of the primary pointer control.
func (d *Device) Primary() Control {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.primary
}

// IsInProgress reports whether slot is in Began or Moved.
func (d *Device) IsInProgress(slot int) bool {
	c, ok := d.Control(slot)
	return ok && c.IsInProgress()
}

// BeganThisUpdate reports whether slot entered Began this update.
func (d *Device) BeganThisUpdate(slot int) bool {
	c, ok := d.Control(slot)
	return ok && c.began
}

// EndedThisUpdate reports whether slot entered Ended or Cancelled this
// update.
func (d *Device) EndedThisUpdate(slot int) bool {
	c, ok := d.Control(slot)
	return ok && c.ended
}

// Update returns the tick of the current update.
func (d *Device) Update() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.update
}

// Pushes returns the number of events applied.
func (d *Device) Pushes() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pushes
}

// Reset clears every control. Called when the host stops.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *Device) resetLocked() {
	for i := range d.controls {
		d.controls[i] = Control{Slot: i}
	}
	d.primary = Control{}
	d.update = 0
}
