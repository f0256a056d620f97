package datastructure

import (
	"math"
	"testing"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/stretchr/testify/assert"
)

func TestNewPointDefaults(t *testing.T) {
	t.Parallel()

	p := NewPoint(geom.Vec3{X: 1, Y: 2, Z: 3})

	assert.Equal(t, geom.Vec3{X: 1, Y: 2, Z: 3}, p.Position)
	assert.True(t, math.IsInf(p.DistToActor, 1))
	assert.True(t, math.IsInf(p.DistToOtherActors, 1))
	assert.True(t, math.IsInf(p.MinDistToObstacle, 1))
	assert.True(t, p.IsDirty())
	assert.False(t, p.IsTraversable())
}

func TestPointFlagLifecycle(t *testing.T) {
	t.Parallel()

	p := NewPoint(geom.Vec3{})
	assert.True(t, p.IsDirty())

	p.ClearDirty()
	assert.False(t, p.IsDirty())

	p.MarkDirty()
	assert.True(t, p.IsDirty())

	p.Flags = p.Flags.Set(pkg.TRAVERSABLE)
	assert.True(t, p.IsTraversable())

	p.Flags = p.Flags.Set(pkg.EDGE)
	assert.True(t, p.IsEdge())
}

func TestResetPlanState(t *testing.T) {
	t.Parallel()

	p := NewPoint(geom.Vec3{})
	p.PathCost = 5
	p.Reward = 2
	p.RelativeCost = 2.5

	p.ResetPlanState()

	assert.True(t, math.IsInf(p.PathCost, 1))
	assert.Equal(t, 0.0, p.Reward)
	assert.True(t, math.IsInf(p.RelativeCost, 1))
}

func TestPitchAndRollAngles(t *testing.T) {
	t.Parallel()

	t.Run("flat normal has zero pitch and roll", func(t *testing.T) {
		p := NewPoint(geom.Vec3{})
		p.Normal = geom.Vec3{Z: 1}
		assert.InDelta(t, 0, p.PitchAngle(), 1e-9)
		assert.InDelta(t, 0, p.RollAngle(), 1e-9)
	})

	t.Run("tilted along x contributes to pitch, not roll", func(t *testing.T) {
		p := NewPoint(geom.Vec3{})
		p.Normal = geom.Vec3{X: 1, Z: 1}.Normalize()
		assert.Greater(t, p.PitchAngle(), 0.0)
		assert.InDelta(t, 0, p.RollAngle(), 1e-9)
	})
}

func TestAngleToWorldUp(t *testing.T) {
	t.Parallel()

	p := NewPoint(geom.Vec3{})
	p.Normal = geom.Vec3{Z: 1}
	assert.InDelta(t, 0, p.AngleToWorldUp(), 1e-9)

	p.Normal = geom.Vec3{X: 1}
	assert.InDelta(t, math.Pi/2, p.AngleToWorldUp(), 1e-9)
}
