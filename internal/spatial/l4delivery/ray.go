package l4delivery

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// DefaultProjectionDistance is how far along the ray, in metres, the
// device offset is applied when computing the interaction rotation.
const DefaultProjectionDistance = 1.0

const parallelEpsilon = 1e-9

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// LookRotation returns the roll-free rotation taking +Z onto dir with +Y
// as up. A zero direction yields the identity.
func LookRotation(dir r3.Vec) quat.Number {
	n := r3.Norm(dir)
	if n == 0 {
		return spatial.IdentityRotation
	}
	d := r3.Scale(1/n, dir)

	yaw := math.Atan2(d.X, d.Z)
	pitch := -math.Asin(clamp(d.Y, -1, 1))

	qYaw := quat.Number(r3.NewRotation(yaw, axisY))
	qPitch := quat.Number(r3.NewRotation(pitch, axisX))
	return quat.Mul(qYaw, qPitch)
}

// FromTo returns the shortest-arc rotation taking from onto to. Zero
// vectors and parallel vectors yield the identity.
func FromTo(from, to r3.Vec) quat.Number {
	nf, nt := r3.Norm(from), r3.Norm(to)
	if nf == 0 || nt == 0 {
		return spatial.IdentityRotation
	}
	a := r3.Scale(1/nf, from)
	b := r3.Scale(1/nt, to)

	dot := clamp(r3.Dot(a, b), -1, 1)
	if dot >= 1-parallelEpsilon {
		return spatial.IdentityRotation
	}
	if dot <= -1+parallelEpsilon {
		// Half turn about any axis perpendicular to a.
		axis := r3.Cross(a, axisX)
		if r3.Norm(axis) < 1e-6 {
			axis = r3.Cross(a, axisY)
		}
		return quat.Number(r3.NewRotation(math.Pi, r3.Unit(axis)))
	}
	axis := r3.Unit(r3.Cross(a, b))
	return quat.Number(r3.NewRotation(math.Acos(dot), axis))
}

// InteractionRotation rotates the ray direction towards the point
// distance metres along the ray, displaced by how far the device has moved
// since the gesture began. No device movement yields the identity.
func InteractionRotation(origin, dir, devicePos, startPos r3.Vec, distance float64) quat.Number {
	offset := r3.Sub(devicePos, startPos)
	if offset == (r3.Vec{}) {
		return spatial.IdentityRotation
	}
	if distance <= 0 {
		distance = DefaultProjectionDistance
	}
	target := r3.Add(r3.Add(origin, r3.Scale(distance, r3.Unit(dir))), offset)
	return FromTo(dir, r3.Sub(target, origin))
}

// Rotate applies q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
