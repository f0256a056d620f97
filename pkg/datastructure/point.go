package datastructure

import (
	"math"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/geom"
)

// Point is the core map entity: a sample of the environment plus everything
// derived from its neighborhood by the feature/label engine and the
// planner. See spec §3.
type Point struct {
	Position geom.Vec3

	Normal       geom.Vec3
	NumNormalPts int

	GroundDiffMin      float64
	GroundDiffMax      float64
	GroundDiffStd      float64
	MeanAbsGroundDiff  float64

	NumObstaclePts     int
	MinDistToObstacle  float64

	NumEdgeNeighbors int

	Flags pkg.Flags

	// Visitation, updated by the viewpoint ledger. Non-finite (+Inf) means
	// "never seen".
	DistToActor          float64
	ActorLastVisit        float64
	DistToOtherActors     float64
	OtherActorsLastVisit  float64

	// Reset and recomputed on every plan; not persisted across plans.
	PathCost     float64
	Reward       float64
	RelativeCost float64
}

// NewPoint constructs a point at position with all derived state at its
// "never observed" / "not yet featurized" defaults.
func NewPoint(position geom.Vec3) *Point {
	return &Point{
		Position:             position,
		GroundDiffMin:        math.Inf(1),
		GroundDiffMax:        math.Inf(-1),
		MinDistToObstacle:    math.Inf(1),
		DistToActor:          math.Inf(1),
		ActorLastVisit:       math.Inf(-1),
		DistToOtherActors:    math.Inf(1),
		OtherActorsLastVisit: math.Inf(-1),
		PathCost:             math.Inf(1),
		Reward:               0,
		RelativeCost:         math.Inf(1),
		Flags:                pkg.DIRTY,
	}
}

// ResetPlanState clears the fields the planner recomputes on every run,
// called before each SSSP pass so stale values from a prior plan never leak
// into a new one.
func (p *Point) ResetPlanState() {
	p.PathCost = math.Inf(1)
	p.Reward = 0
	p.RelativeCost = math.Inf(1)
}

func (p *Point) IsTraversable() bool {
	return p.Flags.Has(pkg.TRAVERSABLE)
}

func (p *Point) IsEdge() bool {
	return p.Flags.Has(pkg.EDGE)
}

func (p *Point) IsDirty() bool {
	return p.Flags.Has(pkg.DIRTY)
}

func (p *Point) MarkDirty() {
	p.Flags = p.Flags.Set(pkg.DIRTY)
}

func (p *Point) ClearDirty() {
	p.Flags = p.Flags.Clear(pkg.DIRTY)
}

// AngleToWorldUp is the normal's tilt against world-up, used where
// traversability only cares about the cone angle and not pitch vs. roll.
func (p *Point) AngleToWorldUp() float64 {
	return geom.AngleBetween(p.Normal, geom.WorldUp)
}

// PitchAngle is the normal's tilt projected onto the map-frame XZ plane
// (forward/up), used against max_pitch in spec §3's traversability
// predicate.
func (p *Point) PitchAngle() float64 {
	return math.Atan2(math.Abs(p.Normal.X), math.Abs(p.Normal.Z)+1e-12)
}

// RollAngle is the normal's tilt projected onto the map-frame YZ plane
// (lateral/up), used against max_roll.
func (p *Point) RollAngle() float64 {
	return math.Atan2(math.Abs(p.Normal.Y), math.Abs(p.Normal.Z)+1e-12)
}
