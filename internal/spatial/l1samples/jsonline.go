package l1samples

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// LineBatch is one batch as written by the serial tracking bridge, one
// JSON object per line.
type LineBatch struct {
	Samples []LineSample `json:"samples"`
}

// LineSample is one pointer in a LineBatch. Vectors are [x, y, z] and
// the device rotation is [x, y, z, w].
type LineSample struct {
	ID             int32      `json:"id"`
	Phase          string     `json:"phase"`
	Kind           string     `json:"kind,omitempty"`
	Modifiers      uint16     `json:"modifiers,omitempty"`
	RayOrigin      [3]float64 `json:"ray_origin"`
	RayDirection   [3]float64 `json:"ray_direction"`
	DevicePosition [3]float64 `json:"device_position"`
	DeviceRotation [4]float64 `json:"device_rotation"`
}

// IsBatchLine reports whether a bridge line carries samples. The bridge
// also prints status lines, which are skipped.
func IsBatchLine(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "{") && strings.Contains(line, `"samples"`)
}

// DecodeLine parses a bridge line. Samples with an unknown phase or kind
// are skipped and counted as rejected.
func DecodeLine(line string, ts time.Time, batch uint64) ([]spatial.RawSample, DecodeStats, error) {
	var stats DecodeStats
	var lb LineBatch
	if err := json.Unmarshal([]byte(line), &lb); err != nil {
		return nil, stats, fmt.Errorf("%w: %v", spatial.ErrMalformedPayload, err)
	}

	samples := make([]spatial.RawSample, 0, len(lb.Samples))
	for _, ls := range lb.Samples {
		s, err := ls.RawSample()
		if err != nil {
			stats.Rejected++
			continue
		}
		s.Timestamp = ts
		s.Batch = batch
		samples = append(samples, s)
		stats.Records++
	}
	return samples, stats, nil
}

// RawSample converts the line form into a sample.
func (ls LineSample) RawSample() (spatial.RawSample, error) {
	phase, err := spatial.ParseRawPhase(strings.ToLower(ls.Phase))
	if err != nil {
		return spatial.RawSample{}, err
	}
	kind, err := spatial.ParseKind(ls.Kind)
	if err != nil {
		return spatial.RawSample{}, err
	}
	rot := quat.Number{Imag: ls.DeviceRotation[0], Jmag: ls.DeviceRotation[1], Kmag: ls.DeviceRotation[2], Real: ls.DeviceRotation[3]}
	if rot == (quat.Number{}) {
		rot = spatial.IdentityRotation
	}
	return spatial.RawSample{
		RawID:          ls.ID,
		Phase:          phase,
		Kind:           kind,
		Modifiers:      spatial.ModifierKeys(ls.Modifiers),
		RayOrigin:      vecFrom(ls.RayOrigin),
		RayDirection:   vecFrom(ls.RayDirection),
		DevicePosition: vecFrom(ls.DevicePosition),
		DeviceRotation: rot,
	}, nil
}

// EncodeLine renders samples in the bridge line format.
func EncodeLine(samples []spatial.RawSample) (string, error) {
	lb := LineBatch{Samples: make([]LineSample, 0, len(samples))}
	for _, s := range samples {
		lb.Samples = append(lb.Samples, LineSample{
			ID:             s.RawID,
			Phase:          s.Phase.String(),
			Kind:           s.Kind.String(),
			Modifiers:      uint16(s.Modifiers),
			RayOrigin:      [3]float64{s.RayOrigin.X, s.RayOrigin.Y, s.RayOrigin.Z},
			RayDirection:   [3]float64{s.RayDirection.X, s.RayDirection.Y, s.RayDirection.Z},
			DevicePosition: [3]float64{s.DevicePosition.X, s.DevicePosition.Y, s.DevicePosition.Z},
			DeviceRotation: [4]float64{s.DeviceRotation.Imag, s.DeviceRotation.Jmag, s.DeviceRotation.Kmag, s.DeviceRotation.Real},
		})
	}
	b, err := json.Marshal(lb)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func vecFrom(v [3]float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
