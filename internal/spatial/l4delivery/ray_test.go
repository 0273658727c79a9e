package l4delivery

import (
	"math"
	"testing"

	"github.com/banshee-data/spatialpointer/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func checkVecNear(t *testing.T, want, got r3.Vec) {
	t.Helper()
	if math.Abs(want.X-got.X) > tol || math.Abs(want.Y-got.Y) > tol || math.Abs(want.Z-got.Z) > tol {
		t.Errorf("vector = %v, want %v", got, want)
	}
}

func TestLookRotation(t *testing.T) {
	t.Parallel()

	if got := LookRotation(r3.Vec{}); got != spatial.IdentityRotation {
		t.Errorf("LookRotation(zero) = %v, want identity", got)
	}

	dirs := []r3.Vec{
		{Z: 1},
		{Z: -1},
		{X: 1},
		{Y: 1},
		{X: 1, Y: 2, Z: -3},
		{X: -0.2, Y: -0.5, Z: 0.4},
	}
	for _, d := range dirs {
		q := LookRotation(d)
		checkVecNear(t, r3.Unit(d), Rotate(q, axisZ))
	}
}

func TestLookRotationHasNoRoll(t *testing.T) {
	t.Parallel()
	q := LookRotation(r3.Vec{X: 1, Z: 1})
	up := Rotate(q, axisY)
	// Right vector stays horizontal so up has no sideways lean.
	right := Rotate(q, axisX)
	if math.Abs(right.Y) > tol {
		t.Errorf("right.Y = %g, want 0", right.Y)
	}
	if up.Y <= 0 {
		t.Errorf("up.Y = %g, want positive", up.Y)
	}
}

func TestFromTo(t *testing.T) {
	t.Parallel()

	pairs := [][2]r3.Vec{
		{{Z: 1}, {X: 1}},
		{{X: 1, Y: 1}, {Y: -1, Z: 2}},
		{{Z: 1}, {Z: -1}},
		{{X: 1}, {X: -3}},
	}
	for _, p := range pairs {
		q := FromTo(p[0], p[1])
		checkVecNear(t, r3.Unit(p[1]), Rotate(q, r3.Unit(p[0])))
	}

	if got := FromTo(r3.Vec{Z: 1}, r3.Vec{Z: 5}); got != spatial.IdentityRotation {
		t.Errorf("FromTo(parallel) = %v, want identity", got)
	}
	if got := FromTo(r3.Vec{}, r3.Vec{Z: 1}); got != spatial.IdentityRotation {
		t.Errorf("FromTo(zero, z) = %v, want identity", got)
	}
}

func TestInteractionRotationIdentityWithoutMovement(t *testing.T) {
	t.Parallel()
	pos := r3.Vec{X: 0.1, Y: 1.2, Z: -0.3}
	if q := InteractionRotation(r3.Vec{Y: 1.5}, r3.Vec{Z: -1}, pos, pos, 1); q != spatial.IdentityRotation {
		t.Errorf("InteractionRotation without movement = %v, want identity", q)
	}
}

func TestInteractionRotationFollowsDevice(t *testing.T) {
	t.Parallel()
	origin := r3.Vec{Y: 1.5}
	dir := r3.Vec{Z: -1}
	start := r3.Vec{Y: 1.2, Z: -0.3}
	moved := r3.Add(start, r3.Vec{Y: 0.1})

	q := InteractionRotation(origin, dir, moved, start, 1)
	got := Rotate(q, dir)

	// The point 1 m along the ray, lifted 0.1 m.
	checkVecNear(t, r3.Unit(r3.Vec{Y: 0.1, Z: -1}), got)
	if got.Y <= 0 {
		t.Errorf("ray should tilt up, got.Y = %g", got.Y)
	}

	// Twice the distance halves the angle, roughly.
	far := Rotate(InteractionRotation(origin, dir, moved, start, 2), dir)
	if math.Abs(far.Y) >= math.Abs(got.Y) {
		t.Errorf("far.Y = %g, want smaller than %g", far.Y, got.Y)
	}
}
