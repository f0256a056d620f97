package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Arithmetic(t *testing.T) {
	t.Parallel()

	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: -1, Z: 0.5}

	assert.Equal(t, Vec3{X: 5, Y: 1, Z: 3.5}, a.Add(b))
	assert.Equal(t, Vec3{X: -3, Y: 3, Z: 2.5}, a.Sub(b))
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 6}, a.Scale(2))
	assert.InDelta(t, 1*4+2*-1+3*0.5, a.Dot(b), 1e-12)
}

func TestVec3Cross(t *testing.T) {
	t.Parallel()
	x := Vec3{X: 1}
	y := Vec3{Y: 1}
	assert.Equal(t, Vec3{Z: 1}, x.Cross(y))
}

func TestVec3Normalize(t *testing.T) {
	t.Parallel()

	t.Run("unit length for nonzero vector", func(t *testing.T) {
		v := Vec3{X: 3, Y: 4, Z: 0}.Normalize()
		assert.InDelta(t, 1.0, v.Norm(), 1e-9)
	})

	t.Run("zero vector stays zero", func(t *testing.T) {
		v := Vec3{}.Normalize()
		assert.Equal(t, Vec3{}, v)
	})
}

func TestVec3IsFinite(t *testing.T) {
	t.Parallel()
	assert.True(t, Vec3{X: 1, Y: 2, Z: 3}.IsFinite())
	assert.False(t, Vec3{X: math.NaN()}.IsFinite())
	assert.False(t, Vec3{X: math.Inf(1)}.IsFinite())
}

func TestSqDistAndDist(t *testing.T) {
	t.Parallel()
	a := Vec3{X: 0, Y: 0, Z: 0}
	b := Vec3{X: 3, Y: 4, Z: 0}
	assert.InDelta(t, 25.0, SqDist(a, b), 1e-12)
	assert.InDelta(t, 5.0, Dist(a, b), 1e-12)
}

func TestAngleBetween(t *testing.T) {
	t.Parallel()

	t.Run("orthogonal vectors", func(t *testing.T) {
		assert.InDelta(t, math.Pi/2, AngleBetween(Vec3{X: 1}, Vec3{Y: 1}), 1e-9)
	})

	t.Run("parallel vectors", func(t *testing.T) {
		assert.InDelta(t, 0, AngleBetween(Vec3{X: 1}, Vec3{X: 2}), 1e-9)
	})

	t.Run("degenerate zero vector returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, AngleBetween(Vec3{}, Vec3{X: 1}))
	})
}

func TestClip(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, Clip(0.5, 1, 5))
	assert.Equal(t, 5.0, Clip(10, 1, 5))
	assert.Equal(t, 3.0, Clip(3, 1, 5))
}

func TestDegreesRadiansRoundTrip(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 45.0, RadiansToDegrees(DegreesToRadians(45)), 1e-9)
}
