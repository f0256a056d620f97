package planner

import (
	"math"

	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/geom"
)

// pathCostFloor keeps the start vertex itself (path_cost == 0) ineligible
// as an exploration goal (spec §4.7: "floor avoids picking the start
// itself").
const pathCostFloor = 1e-6

// StagingBox parameterizes the region_penalty box from spec §4.7. The
// literal bounds are a fixture, not a contract (spec §9): callers wire in
// whatever staging area their deployment defines, and an empty box (Min ==
// Max == zero Vec3, tested via Empty) disables the penalty entirely.
type StagingBox struct {
	Min, Max geom.Vec3
}

func (b StagingBox) Empty() bool {
	return b.Min == geom.Vec3{} && b.Max == geom.Vec3{}
}

func (b StagingBox) Contains(p geom.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// regionPenalty is 1 outside box, 1/(1+||pos||^4) inside it.
func regionPenalty(box StagingBox, pos geom.Vec3) float64 {
	if box.Empty() || !box.Contains(pos) {
		return 1
	}
	n := pos.Norm()
	return 1 / (1 + n*n*n*n)
}

// visitScore turns an actor's visitation distance into the [0,1] "how
// unexplored is this from this actor's perspective" score used inside the
// reward formula (spec §4.7), substituting 1 (max_vp_distance/max_vp_distance)
// for actors that have never seen v.
func visitScore(dist, minVp, maxVp float64) float64 {
	if math.IsInf(dist, 1) {
		return 1
	}
	return geom.Clip(dist, minVp, maxVp) / maxVp
}

// reward implements spec §4.7's reward formula exactly as given — the
// max(min(...), self_factor*self) composition intentionally is not
// simplified (spec §9: "do not simplify").
func reward(p *datastructure.Point, minVp, maxVp, selfFactor float64, box StagingBox) float64 {
	rSelf := visitScore(p.DistToActor, minVp, maxVp)
	rOther := visitScore(p.DistToOtherActors, minVp, maxVp)

	combined := rSelf
	if rOther < combined {
		combined = rOther
	}
	discounted := selfFactor * rSelf
	r := combined
	if discounted > r {
		r = discounted
	}

	r *= float64(1 + p.NumEdgeNeighbors)
	r *= regionPenalty(box, p.Position)
	return r
}

// relativeCost is path_cost / reward; the vertex is eligible iff reward > 0
// and path_cost exceeds the floor.
func relativeCost(pathCost, reward float64) (cost float64, eligible bool) {
	if !(reward > 0) || !(pathCost > pathCostFloor) {
		return math.Inf(1), false
	}
	return pathCost / reward, true
}
