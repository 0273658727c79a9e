package spatial

import "fmt"

// Phase is the canonical pointer phase exposed downstream.
type Phase uint8

const (
	PhaseNone      Phase = 0
	PhaseBegan     Phase = 1
	PhaseMoved     Phase = 2
	PhaseEnded     Phase = 3
	PhaseCancelled Phase = 4
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseBegan:
		return "began"
	case PhaseMoved:
		return "moved"
	case PhaseEnded:
		return "ended"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// InProgress reports whether a gesture is live (Began or Moved).
func (p Phase) InProgress() bool {
	return p == PhaseBegan || p == PhaseMoved
}

// Terminal reports whether p ends a gesture (Ended or Cancelled).
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseCancelled
}

// Idle reports whether p is None, Ended or Cancelled.
func (p Phase) Idle() bool {
	return !p.InProgress()
}

// ValidTransition reports whether a slot whose last delivered phase is
// from may next deliver to. The only legal path is
// None → Began → Moved* → (Ended|Cancelled) → None.
func ValidTransition(from, to Phase) bool {
	switch from {
	case PhaseNone:
		return to == PhaseBegan
	case PhaseBegan, PhaseMoved:
		return to == PhaseMoved || to.Terminal()
	case PhaseEnded, PhaseCancelled:
		return to == PhaseNone
	}
	return false
}

// RawPhase is the tracking source's own vocabulary. There is no Began:
// the source only reports that an interaction is active.
type RawPhase uint8

const (
	RawActive RawPhase = iota
	RawEnded
	RawCancelled
)

func (p RawPhase) String() string {
	switch p {
	case RawActive:
		return "active"
	case RawEnded:
		return "ended"
	case RawCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("raw_phase(%d)", uint8(p))
	}
}

// ParseRawPhase accepts the names used by the JSON bridge protocol.
func ParseRawPhase(s string) (RawPhase, error) {
	switch s {
	case "active", "began", "moved":
		return RawActive, nil
	case "ended":
		return RawEnded, nil
	case "cancelled", "canceled":
		return RawCancelled, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

// TrackingState mirrors the input framework's tracking flags.
type TrackingState uint32

const (
	TrackingNone     TrackingState = 0
	TrackingPosition TrackingState = 1 << 0
	TrackingRotation TrackingState = 1 << 1
)
