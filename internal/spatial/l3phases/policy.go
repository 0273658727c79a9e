package l3phases

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// Gesture is what the engine remembers about the live gesture of a slot
// between samples.
type Gesture struct {
	Seen      bool
	Kind      spatial.Kind
	LastSeen  time.Time
	LastBatch uint64
}

// RestartPolicy decides whether an Active sample for a slot whose gesture
// is still in progress is really the start of a new physical gesture
// that the source never ended. The tracking source gives no explicit
// signal for this, so the trigger is a heuristic to be validated against
// recorded device traces.
type RestartPolicy interface {
	Restarted(g Gesture, s spatial.RawSample) bool
	String() string
}

// Never disables restart detection.
type Never struct{}

func (Never) Restarted(Gesture, spatial.RawSample) bool { return false }
func (Never) String() string                             { return "never" }

// RepeatInBatch treats a second sample for the same raw id within one
// native batch as a new gesture: one callback carries one record per
// live interaction.
type RepeatInBatch struct{}

func (RepeatInBatch) Restarted(g Gesture, s spatial.RawSample) bool {
	return g.Seen && s.Batch != 0 && s.Batch == g.LastBatch
}
func (RepeatInBatch) String() string { return "repeat_in_batch" }

// KindChange treats a change of interaction kind (e.g. indirect pinch to
// direct pinch) under the same raw id as a new gesture.
type KindChange struct{}

func (KindChange) Restarted(g Gesture, s spatial.RawSample) bool {
	return g.Seen && s.Kind != g.Kind
}
func (KindChange) String() string { return "kind_change" }

// Gap treats a sample arriving more than Max after the previous one as a
// new gesture: the old one silently died (e.g. the hand left view).
type Gap struct {
	Max time.Duration
}

func (p Gap) Restarted(g Gesture, s spatial.RawSample) bool {
	if !g.Seen || p.Max <= 0 || g.LastSeen.IsZero() || s.Timestamp.IsZero() {
		return false
	}
	return s.Timestamp.Sub(g.LastSeen) > p.Max
}
func (p Gap) String() string { return fmt.Sprintf("gap(%s)", p.Max) }

// AnyOf reports a restart when any member does.
type AnyOf []RestartPolicy

func (a AnyOf) Restarted(g Gesture, s spatial.RawSample) bool {
	for _, p := range a {
		if p.Restarted(g, s) {
			return true
		}
	}
	return false
}

func (a AnyOf) String() string {
	names := make([]string, len(a))
	for i, p := range a {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}

// DefaultGap is the silence after which a gesture is presumed dead.
const DefaultGap = 250 * time.Millisecond

// DefaultPolicy is the production restart trigger.
func DefaultPolicy(gap time.Duration) RestartPolicy {
	return AnyOf{RepeatInBatch{}, KindChange{}, Gap{Max: gap}}
}

// ParsePolicy builds a policy from a comma separated list of
// "repeat_in_batch", "kind_change", "gap" or "never".
func ParsePolicy(list string, gap time.Duration) (RestartPolicy, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return DefaultPolicy(gap), nil
	}

	var out AnyOf
	for _, name := range strings.Split(list, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "never":
			return Never{}, nil
		case "repeat_in_batch":
			out = append(out, RepeatInBatch{})
		case "kind_change":
			out = append(out, KindChange{})
		case "gap":
			out = append(out, Gap{Max: gap})
		default:
			return nil, fmt.Errorf("unknown restart policy %q", name)
		}
	}
	return out, nil
}
