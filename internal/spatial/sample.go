package spatial

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// IdentityRotation is the unit quaternion with no rotation.
var IdentityRotation = quat.Number{Real: 1}

// RawSample is one pointer's record in one native batch. RawID is
// reused by the source and must not be kept as a long-lived key.
type RawSample struct {
	RawID          int32
	Phase          RawPhase
	RayOrigin      r3.Vec
	RayDirection   r3.Vec
	DevicePosition r3.Vec
	DeviceRotation quat.Number
	Kind           Kind
	Modifiers      ModifierKeys

	// Timestamp is when the batch was received; Batch numbers batches
	// in arrival order. Both are stamped by the receiving side.
	Timestamp time.Time
	Batch     uint64
}

func (s RawSample) String() string {
	return fmt.Sprintf("raw[id=%d %s %s batch=%d]", s.RawID, s.Phase, s.Kind, s.Batch)
}

// CanonicalEvent is the unit queued per slot and delivered downstream.
type CanonicalEvent struct {
	Slot  int
	Phase Phase

	// Synthesized is true when inference or the driver's follow-up pass
	// generated the event rather than copying a raw sample 1:1.
	Synthesized bool

	RawID          int32
	Kind           Kind
	Modifiers      ModifierKeys
	RayOrigin      r3.Vec
	RayDirection   r3.Vec
	DevicePosition r3.Vec
	DeviceRotation quat.Number
	Timestamp      time.Time

	// Filled by the delivery driver from the slot's PointerState.
	Tick                   uint64
	StartDevicePosition    r3.Vec
	StartRayRotation       quat.Number
	InteractionRayRotation quat.Number
}

// EventFromSample copies the pose and ray of s into an event.
func EventFromSample(slot int, phase Phase, s RawSample, synthesized bool) CanonicalEvent {
	return CanonicalEvent{
		Slot:           slot,
		Phase:          phase,
		Synthesized:    synthesized,
		RawID:          s.RawID,
		Kind:           s.Kind,
		Modifiers:      s.Modifiers,
		RayOrigin:      s.RayOrigin,
		RayDirection:   s.RayDirection,
		DevicePosition: s.DevicePosition,
		DeviceRotation: s.DeviceRotation,
		Timestamp:      s.Timestamp,
	}
}

// InteractionID is the consumer-facing pointer id. Zero is reserved for
// "no touch", so ids start at one.
func (e CanonicalEvent) InteractionID() int { return e.Slot + 1 }

// IsTracked reports whether the pose of e is live.
func (e CanonicalEvent) IsTracked() bool { return e.Phase.InProgress() }

// TrackingState returns Position|Rotation while tracked.
func (e CanonicalEvent) TrackingState() TrackingState {
	if e.IsTracked() {
		return TrackingPosition | TrackingRotation
	}
	return TrackingNone
}

// WithPhase returns a synthesized copy of e carrying phase p.
func (e CanonicalEvent) WithPhase(p Phase) CanonicalEvent {
	e.Phase = p
	e.Synthesized = true
	return e
}

func (e CanonicalEvent) String() string {
	s := fmt.Sprintf("slot=%d %s", e.Slot, e.Phase)
	if e.Synthesized {
		s += " (synth)"
	}
	return s
}

// PointerState is the durable canonical state of one slot. Only the
// delivery driver mutates it.
type PointerState struct {
	Slot                   int
	Phase                  Phase
	Last                   CanonicalEvent
	StartDevicePosition    r3.Vec
	StartRayRotation       quat.Number
	InteractionRayRotation quat.Number
	Deliveries             uint64
}
