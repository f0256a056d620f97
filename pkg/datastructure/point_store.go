package datastructure

import (
	"sync"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/spatialindex"
)

// PointStore is the stably-indexed, append-only sequence of map points plus
// the dirty set the feature/label engine drains. See spec §3/§4.2.
//
// The mutex here and the spatial index's mutex are always acquired in the
// order point-store -> index (spec §5). PointStore never calls back into
// Index while already holding idx.mu, so the two locks never nest the other
// way; within PointStore itself, every exported method that locks takes the
// lock once and delegates to unexported, lock-free helpers (the *Locked
// accessors and NearbyIndices take no store lock at all), which is how we honor
// spec §5's "mutexes are re-entrant" requirement without Go's sync.Mutex
// actually supporting reentrancy.
type PointStore struct {
	mu sync.RWMutex

	points []*Point
	dirty  map[Index]struct{}

	index *spatialindex.Index

	pointsMinDist      float64
	neighborhoodRadius float64
	minEmptyCos        float64
	emptyRayUpdate     bool
}

func NewPointStore(index *spatialindex.Index, pointsMinDist, neighborhoodRadius, minEmptyCos float64) *PointStore {
	return &PointStore{
		points:             make([]*Point, 0),
		dirty:              make(map[Index]struct{}),
		index:              index,
		pointsMinDist:      pointsMinDist,
		neighborhoodRadius: neighborhoodRadius,
		minEmptyCos:        minEmptyCos,
	}
}

// EnableEmptyRayUpdate turns on the optional empty-space contribution
// described in spec §4.2. Off by default: spec marks it optional for
// planning correctness.
func (ps *PointStore) EnableEmptyRayUpdate(on bool) {
	ps.emptyRayUpdate = on
}

func (ps *PointStore) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.points)
}

// Get returns the point at v. Callers that only read should hold RLock
// and use GetLocked/LenLocked if they need a consistent snapshot
// across several indices (e.g. the planner copying out attributes before
// running Dijkstra, spec §5).
func (ps *PointStore) Get(v Index) *Point {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if int(v) >= len(ps.points) {
		return nil
	}
	return ps.points[v]
}

// RLock/RUnlock/Lock/Unlock are exposed so the planner and feature engine
// can hold a single consistent snapshot across a whole SSSP pass or
// recompute batch, per spec §5.
func (ps *PointStore) RLock()   { ps.mu.RLock() }
func (ps *PointStore) RUnlock() { ps.mu.RUnlock() }
func (ps *PointStore) Lock()    { ps.mu.Lock() }
func (ps *PointStore) Unlock()  { ps.mu.Unlock() }

// GetLocked is Get without taking the lock; the caller must already hold
// at least RLock.
func (ps *PointStore) GetLocked(v Index) *Point {
	if int(v) >= len(ps.points) {
		return nil
	}
	return ps.points[v]
}

func (ps *PointStore) LenLocked() int {
	return len(ps.points)
}

// Merge drops candidates within pointsMinDist of an existing point or of a
// candidate already accepted from the same batch, and appends the rest, marking each new point and every existing point within
// 2*neighborhoodRadius of it dirty (spec §4.2's closed-ball requirement —
// "a requirement, not an optimization", spec §9). origin is the sensor
// viewpoint the cloud was captured from; it only matters when the optional
// empty-ray update is enabled. Returns the number of points actually added.
func (ps *PointStore) Merge(candidates []geom.Vec3, origin geom.Vec3) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	added := 0
	newPositions := make([]geom.Vec3, 0, len(candidates))
	startID := Index(len(ps.points))

	minDist2 := ps.pointsMinDist * ps.pointsMinDist
	for _, c := range candidates {
		if ps.hasNeighborWithin(c, ps.pointsMinDist) {
			continue
		}
		// the index only learns this batch after the loop, so candidates
		// are also checked against the ones already accepted from it.
		tooClose := false
		for _, q := range newPositions {
			if geom.SqDist(c, q) <= minDist2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		p := NewPoint(c)
		ps.points = append(ps.points, p)
		newPositions = append(newPositions, c)
		added++
	}

	if added == 0 {
		return 0
	}

	ps.index.Add(newPositions, startID)

	for i, c := range newPositions {
		newID := startID + Index(i)
		ps.markDirty(newID)
		ps.markNeighborsDirty(c, newID)
	}

	if ps.emptyRayUpdate {
		ps.applyEmptyRayUpdate(origin, newPositions)
	}

	return added
}

func (ps *PointStore) hasNeighborWithin(p geom.Vec3, r float64) bool {
	for _, n := range ps.index.Radius(p, r) {
		if int(n.Index) < len(ps.points) {
			return true
		}
	}
	return false
}

func (ps *PointStore) markDirty(v Index) {
	ps.points[v].MarkDirty()
	ps.dirty[v] = struct{}{}
}

// markNeighborsDirty marks every existing point within the closed ball of
// radius 2*neighborhoodRadius around the new point newPos dirty, since its
// neighborhood now includes newID.
func (ps *PointStore) markNeighborsDirty(newPos geom.Vec3, newID Index) {
	for _, n := range ps.index.Radius(newPos, 2*ps.neighborhoodRadius) {
		if n.Index == newID || int(n.Index) >= len(ps.points) {
			continue
		}
		ps.markDirty(n.Index)
	}
}

// applyEmptyRayUpdate implements the optional "ray passes near an existing
// point" contribution from spec §4.2: if a newly measured point lies
// farther from origin than an existing point, nearly along the same
// bearing, the existing point likely doesn't exist (the sensor saw past
// it) and gets an EMPTY flag contribution.
func (ps *PointStore) applyEmptyRayUpdate(origin geom.Vec3, newPoints []geom.Vec3) {
	for _, q := range newPoints {
		dq := q.Sub(origin)
		distQ := dq.Norm()
		if distQ < 1e-6 {
			continue
		}
		for _, cand := range ps.index.Radius(q, ps.neighborhoodRadius*4) {
			p := ps.points[cand.Index]
			dp := p.Position.Sub(origin)
			distP := dp.Norm()
			if distP < 1e-6 || distP >= distQ {
				continue
			}
			cosang := dp.Dot(dq) / (distP * distQ)
			if cosang >= ps.minEmptyCos {
				p.Flags = p.Flags.Set(pkg.EMPTY)
			}
		}
	}
}

// DirtySnapshot returns the current dirty set as a slice; it does not clear
// it (the feature/label engine clears per-point dirty bits as it commits
// each point's recomputed features, spec §4.3 step 7).
func (ps *PointStore) DirtySnapshot() []Index {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]Index, 0, len(ps.dirty))
	for v := range ps.dirty {
		out = append(out, v)
	}
	return out
}

// ClearDirty removes v from the dirty set. The engine calls this after
// committing v's recomputed features.
func (ps *PointStore) ClearDirty(v Index) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.dirty, v)
	if int(v) < len(ps.points) {
		ps.points[v].ClearDirty()
	}
}

// NearbyIndices wraps the spatial index's radius query (spec §4.2).
func (ps *PointStore) NearbyIndices(p geom.Vec3, r float64) []spatialindex.Neighbor {
	return ps.index.Radius(p, r)
}

func (ps *PointStore) NeighborhoodRadius() float64 {
	return ps.neighborhoodRadius
}

func (ps *PointStore) PointsMinDist() float64 {
	return ps.pointsMinDist
}

// AllIndices returns every live vertex id, for callers that need to walk
// the whole store (e.g. emitting the full map cloud).
func (ps *PointStore) AllIndices() []Index {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]Index, len(ps.points))
	for i := range ps.points {
		out[i] = Index(i)
	}
	return out
}
