package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuatFromFrameIdentity(t *testing.T) {
	t.Parallel()

	f := Frame3{X: Vec3{X: 1}, Y: Vec3{Y: 1}, Z: Vec3{Z: 1}}
	q := QuatFromFrame(f)

	assert.InDelta(t, 1.0, q.W, 1e-9)
	assert.InDelta(t, 0.0, q.X, 1e-9)
	assert.InDelta(t, 0.0, q.Y, 1e-9)
	assert.InDelta(t, 0.0, q.Z, 1e-9)
}

func TestQuatFromFrameIsUnit(t *testing.T) {
	t.Parallel()

	frames := []Frame3{
		{X: Vec3{X: 1}, Y: Vec3{Y: 1}, Z: Vec3{Z: 1}},
		{X: Vec3{Y: 1}, Y: Vec3{Z: 1}, Z: Vec3{X: 1}},
		{X: Vec3{X: -1}, Y: Vec3{Y: 1}, Z: Vec3{Z: -1}},
	}
	for _, f := range frames {
		q := QuatFromFrame(f)
		n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
		assert.InDelta(t, 1.0, n, 1e-9)
	}
}

// TestOrientFromTangentAndNormal exercises spec §8's pose-orientation
// invariants: z-axis unit and z.worldUp >= 0, x-axis the tangent direction,
// right-handed frame (det == +1).
func TestOrientFromTangentAndNormal(t *testing.T) {
	t.Parallel()

	t.Run("flat ground, forward motion", func(t *testing.T) {
		f := OrientFromTangentAndNormal(Vec3{X: 1}, Vec3{Z: 1})
		assert.InDelta(t, 1.0, f.Z.Norm(), 1e-9)
		assert.GreaterOrEqual(t, f.Z.Dot(WorldUp), 0.0)
		assert.InDelta(t, 1.0, f.X.Dot(Vec3{X: 1}), 1e-9)
		assert.InDelta(t, 1.0, f.Determinant(), 1e-9)
	})

	t.Run("downward-facing normal is flipped to agree with world-up", func(t *testing.T) {
		f := OrientFromTangentAndNormal(Vec3{X: 1}, Vec3{Z: -1})
		assert.GreaterOrEqual(t, f.Z.Dot(WorldUp), 0.0)
		assert.InDelta(t, 1.0, f.Determinant(), 1e-9)
	})

	t.Run("degenerate zero tangent still yields an orthonormal frame", func(t *testing.T) {
		f := OrientFromTangentAndNormal(Vec3{}, Vec3{Z: 1})
		assert.InDelta(t, 1.0, f.X.Norm(), 1e-9)
		assert.InDelta(t, 0.0, f.X.Dot(f.Z), 1e-9)
		assert.InDelta(t, 1.0, f.Determinant(), 1e-9)
	})
}

func TestQuatNormalizeDegenerate(t *testing.T) {
	t.Parallel()
	q := Quat{}.Normalize()
	assert.Equal(t, Quat{W: 1}, q)
}
