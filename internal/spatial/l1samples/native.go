package l1samples

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Native record layout, little endian. The offsets match the record the
// platform bridge writes for each spatial event.
const (
	offInteractionID  = 0  // int32
	offRayOrigin      = 4  // 3 × float32
	offRayDirection   = 16 // 3 × float32
	offDevicePosition = 28 // 3 × float32
	offDeviceRotation = 40 // 4 × float32, x y z w
	offModifierKeys   = 56 // uint16
	offKind           = 58 // uint8
	offPhase          = 59 // uint8

	// RecordSize is the size in bytes of one native record.
	RecordSize = 60

	// BatchHeaderSize prefixes datagram batches with a uint16 record count.
	BatchHeaderSize = 2
)

// Native phase bytes. The bridge reports active pointers as began or
// moved depending on its own bookkeeping, which is not trusted here.
const (
	nativePhaseNone      = 0
	nativePhaseBegan     = 1
	nativePhaseMoved     = 2
	nativePhaseEnded     = 3
	nativePhaseCancelled = 4
)

// ErrNoPhase marks a record whose phase byte is zero. Every short record
// has one, since the phase is the last byte; such records start nothing.
var ErrNoPhase = errors.New("native pointer record has no phase")

// DecodeStats counts recoverable decode problems in one batch.
type DecodeStats struct {
	Records   int // records decoded and usable
	ZeroFill  int // short records padded with zeros
	Truncated int // records announced but absent from the payload
	Rejected  int // records with an unknown or zero phase byte
}

// DecodeRecord decodes one native record. A record shorter than
// RecordSize is copied into a zeroed record of the expected size and
// decoded lossily; the returned error wraps spatial.ErrMalformedPayload.
// A zero phase byte, which a short record always has, wraps ErrNoPhase:
// the fields are returned for diagnostics but the sample must not be
// ingested.
func DecodeRecord(b []byte) (spatial.RawSample, error) {
	var malformed error
	if n := len(b); n < RecordSize {
		var buf [RecordSize]byte
		copy(buf[:], b)
		b = buf[:]
		malformed = fmt.Errorf("%w: record is %d bytes, want %d", spatial.ErrMalformedPayload, n, RecordSize)
	}

	s := spatial.RawSample{
		RawID:          int32(binary.LittleEndian.Uint32(b[offInteractionID:])),
		RayOrigin:      readVec(b[offRayOrigin:]),
		RayDirection:   readVec(b[offRayDirection:]),
		DevicePosition: readVec(b[offDevicePosition:]),
		DeviceRotation: readQuat(b[offDeviceRotation:]),
		Modifiers:      spatial.ModifierKeys(binary.LittleEndian.Uint16(b[offModifierKeys:])),
		Kind:           spatial.Kind(b[offKind]),
	}

	if b[offPhase] == nativePhaseNone {
		if malformed != nil {
			return s, fmt.Errorf("%w: %w", ErrNoPhase, malformed)
		}
		return s, ErrNoPhase
	}
	phase, err := rawPhaseFromNative(b[offPhase])
	if err != nil {
		return spatial.RawSample{}, err
	}
	s.Phase = phase
	return s, malformed
}

// DecodeBatch decodes count records laid out back to back in payload, as
// handed over by the native event callback. Records are stamped with ts
// and batch. Problems are counted in the returned stats, never returned:
// a partial final record is zero-filled and then rejected for its zero
// phase byte, and records past the end of the payload are skipped.
func DecodeBatch(payload []byte, count int, ts time.Time, batch uint64) ([]spatial.RawSample, DecodeStats) {
	var stats DecodeStats
	if count <= 0 {
		return nil, stats
	}

	samples := make([]spatial.RawSample, 0, count)
	for i := 0; i < count; i++ {
		start := i * RecordSize
		if start >= len(payload) {
			stats.Truncated += count - i
			break
		}
		end := start + RecordSize
		if end > len(payload) {
			end = len(payload)
			stats.ZeroFill++
		}

		s, err := DecodeRecord(payload[start:end])
		if errors.Is(err, spatial.ErrUnknownPhase) || errors.Is(err, ErrNoPhase) {
			stats.Rejected++
			continue
		}
		s.Timestamp = ts
		s.Batch = batch
		samples = append(samples, s)
		stats.Records++
	}
	return samples, stats
}

// DecodeDatagram decodes a length-prefixed batch as sent over UDP.
func DecodeDatagram(datagram []byte, ts time.Time, batch uint64) ([]spatial.RawSample, DecodeStats, error) {
	if len(datagram) < BatchHeaderSize {
		return nil, DecodeStats{}, fmt.Errorf("%w: datagram is %d bytes", spatial.ErrMalformedPayload, len(datagram))
	}
	count := int(binary.LittleEndian.Uint16(datagram))
	samples, stats := DecodeBatch(datagram[BatchHeaderSize:], count, ts, batch)
	return samples, stats, nil
}

// EncodeRecord writes s in native layout. Active samples are encoded as
// moved; the decoder does not distinguish the two.
func EncodeRecord(dst []byte, s spatial.RawSample) []byte {
	var b [RecordSize]byte
	binary.LittleEndian.PutUint32(b[offInteractionID:], uint32(s.RawID))
	putVec(b[offRayOrigin:], s.RayOrigin)
	putVec(b[offRayDirection:], s.RayDirection)
	putVec(b[offDevicePosition:], s.DevicePosition)
	putQuat(b[offDeviceRotation:], s.DeviceRotation)
	binary.LittleEndian.PutUint16(b[offModifierKeys:], uint16(s.Modifiers))
	b[offKind] = byte(s.Kind)
	b[offPhase] = nativePhase(s.Phase)
	return append(dst, b[:]...)
}

// EncodeDatagram writes a length-prefixed batch.
func EncodeDatagram(samples []spatial.RawSample) []byte {
	out := make([]byte, BatchHeaderSize, BatchHeaderSize+len(samples)*RecordSize)
	binary.LittleEndian.PutUint16(out, uint16(len(samples)))
	for _, s := range samples {
		out = EncodeRecord(out, s)
	}
	return out
}

func rawPhaseFromNative(b byte) (spatial.RawPhase, error) {
	switch b {
	case nativePhaseBegan, nativePhaseMoved:
		return spatial.RawActive, nil
	case nativePhaseEnded:
		return spatial.RawEnded, nil
	case nativePhaseCancelled:
		return spatial.RawCancelled, nil
	}
	return 0, fmt.Errorf("%w: native phase byte %d", spatial.ErrUnknownPhase, b)
}

func nativePhase(p spatial.RawPhase) byte {
	switch p {
	case spatial.RawEnded:
		return nativePhaseEnded
	case spatial.RawCancelled:
		return nativePhaseCancelled
	default:
		return nativePhaseMoved
	}
}

func readFloat(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

func readVec(b []byte) r3.Vec {
	return r3.Vec{X: readFloat(b[0:]), Y: readFloat(b[4:]), Z: readFloat(b[8:])}
}

// readQuat reads x y z w. An all-zero rotation (zero-filled record) is
// returned as identity.
func readQuat(b []byte) quat.Number {
	q := quat.Number{
		Imag: readFloat(b[0:]),
		Jmag: readFloat(b[4:]),
		Kmag: readFloat(b[8:]),
		Real: readFloat(b[12:]),
	}
	if q == (quat.Number{}) {
		return spatial.IdentityRotation
	}
	return q
}

func putFloat(b []byte, f float64) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
}

func putVec(b []byte, v r3.Vec) {
	putFloat(b[0:], v.X)
	putFloat(b[4:], v.Y)
	putFloat(b[8:], v.Z)
}

func putQuat(b []byte, q quat.Number) {
	putFloat(b[0:], q.Imag)
	putFloat(b[4:], q.Jmag)
	putFloat(b[8:], q.Kmag)
	putFloat(b[12:], q.Real)
}
