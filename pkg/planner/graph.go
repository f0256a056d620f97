package planner

import (
	"math"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/geom"
)

// Graph is the lazily-enumerated neighborhood view over the point store
// (spec §4.4): no materialized edge list, edges generated per vertex during
// Dijkstra. The convention chosen here is radius, not kNN (spec §9's open
// question — "tests in §8 assume radius").
type Graph struct {
	store         *datastructure.PointStore
	radius        float64
	maxHeightDiff float64
}

func NewGraph(store *datastructure.PointStore, radius, maxHeightDiff float64) *Graph {
	return &Graph{store: store, radius: radius, maxHeightDiff: maxHeightDiff}
}

func (g *Graph) NumVertices() int {
	return g.store.LenLocked()
}

// OutEdges returns the vertices reachable in one hop from v: within radius,
// both endpoints TRAVERSABLE or EDGE, height step and segment clearance
// respected. Caller must already hold the point store's read lock (or
// stronger) for the duration of the walk — see Planner.Plan.
func (g *Graph) OutEdges(v datastructure.Index) []datastructure.Index {
	vp := g.store.GetLocked(v)
	if vp == nil || !(vp.IsTraversable() || vp.IsEdge()) {
		return nil
	}

	neighbors := g.store.NearbyIndices(vp.Position, g.radius)
	out := make([]datastructure.Index, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Index == v {
			continue
		}
		up := g.store.GetLocked(n.Index)
		if up == nil || !(up.IsTraversable() || up.IsEdge()) {
			continue
		}
		if datastructure.Gt(math.Abs(up.Position.Z-vp.Position.Z), g.maxHeightDiff) {
			continue
		}
		if !g.segmentClearanceOK(vp.Position, up.Position) {
			continue
		}
		out = append(out, n.Index)
	}
	return out
}

// segmentClearanceOK rejects an edge if any OBSTACLE point sits closer to
// the segment's midpoint than half the segment's length — a coarse
// stand-in for "segment clearance not violated by any neighbor" (spec
// §4.4), cheap enough to run per candidate edge without a full sweep.
func (g *Graph) segmentClearanceOK(a, b geom.Vec3) bool {
	mid := a.Add(b).Scale(0.5)
	half := geom.Dist(a, b) / 2
	for _, n := range g.store.NearbyIndices(mid, half+g.radius*0.5) {
		p := g.store.GetLocked(n.Index)
		if p == nil || !p.Flags.Has(pkg.OBSTACLE) {
			continue
		}
		if geom.Dist(p.Position, mid) < half {
			return false
		}
	}
	return true
}

// EdgeCost implements spec §4.5: base Euclidean distance times a
// non-decreasing terrain penalty derived from the worse (larger) of the two
// endpoints' clearance/ground-diff-driven multipliers.
func EdgeCost(store *datastructure.PointStore, v, u datastructure.Index) float64 {
	vp := store.GetLocked(v)
	up := store.GetLocked(u)
	if vp == nil || up == nil {
		return math.Inf(1)
	}

	base := geom.Dist(vp.Position, up.Position)
	worse := terrainPenalty(vp)
	if p := terrainPenalty(up); p > worse {
		worse = p
	}
	return base * worse
}

// terrainPenalty is a non-decreasing multiplier >= 1 driven by how rough
// and how close to an obstacle a point runs, even while still legally
// TRAVERSABLE.
func terrainPenalty(p *datastructure.Point) float64 {
	roughness := 1 + 2*p.MeanAbsGroundDiff
	clearance := 1.0
	if !math.IsInf(p.MinDistToObstacle, 0) {
		clearance = 1 + 1/(1+p.MinDistToObstacle)
	}
	return roughness * clearance
}
