// Package features implements the per-point feature/label engine from
// spec §4.3: normal estimation, ground-diff statistics, clearance counts,
// edge detection, and the traversability predicate. Normal estimation is
// PCA over the local neighborhood's covariance matrix, grounded in
// gonum.org/v1/gonum (the linear-algebra library the rest of the retrieval
// pack reaches for — see banshee-data-velocity.report's go.mod) since
// neither the teacher nor the rest of Navigatorx ever needs an
// eigendecomposition.
package features

import (
	"math"
	"sort"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/config"
	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/spatialindex"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Engine recomputes derived point attributes for the dirty set. It borrows
// the point store (which in turn borrows the spatial index) and never
// outlives it.
type Engine struct {
	store *datastructure.PointStore
	live  *config.Live

	neighborhoodRadius float64
	kNeighbors         int
	minNormalPts       int
	maxPitch           float64
	maxRoll            float64

	log *zap.Logger
}

func NewEngine(store *datastructure.PointStore, live *config.Live, neighborhoodRadius float64,
	kNeighbors, minNormalPts int, maxPitchDeg, maxRollDeg float64, log *zap.Logger) *Engine {
	return &Engine{
		store:              store,
		live:               live,
		neighborhoodRadius: neighborhoodRadius,
		kNeighbors:         kNeighbors,
		minNormalPts:       minNormalPts,
		maxPitch:           geom.DegreesToRadians(maxPitchDeg),
		maxRoll:            geom.DegreesToRadians(maxRollDeg),
		log:                log,
	}
}

// RecomputeDirty drains the point store's current dirty set, recomputing
// each point exactly once (order-independent: spec §4.3 requires the engine
// to be idempotent regardless of visitation order, which holds here because
// every point's recompute only reads neighbor positions, never other
// points' cached features).
func (e *Engine) RecomputeDirty() int {
	dirty := e.store.DirtySnapshot()
	for _, v := range dirty {
		e.recomputeOne(v)
		e.store.ClearDirty(v)
	}
	return len(dirty)
}

func (e *Engine) recomputeOne(v datastructure.Index) {
	p := e.store.Get(v)
	if p == nil {
		return
	}
	live := e.live.Load()

	neighbors := e.store.NearbyIndices(p.Position, e.neighborhoodRadius)
	if e.kNeighbors > 0 && len(neighbors) > e.kNeighbors {
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].SqDist < neighbors[j].SqDist })
		neighbors = neighbors[:e.kNeighbors]
	}

	e.fitNormal(p, neighbors)
	e.computeGroundDiff(p, neighbors)
	e.computeClearance(p, neighbors, live)
	e.detectEdge(p, neighbors)
	e.applyTraversability(p, live)
}

// fitNormal fits the local surface normal by PCA: the eigenvector of the
// neighborhood's covariance matrix with the smallest eigenvalue (the
// direction the points vary least along). Degenerate/too-small
// neighborhoods produce NORMAL_OK=false rather than an arbitrary normal
// (spec §4.3: "tie-breaks in PCA produce NORMAL_OK=false").
func (e *Engine) fitNormal(p *datastructure.Point, neighbors []spatialindex.Neighbor) {
	p.Normal = geom.Vec3{}
	p.NumNormalPts = len(neighbors)

	if len(neighbors) < e.minNormalPts {
		p.Flags = p.Flags.Clear(pkg.NORMAL_OK)
		return
	}

	positions := e.neighborPositions(p, neighbors)
	centroid := centroidOf(positions)

	var cov mat.SymDense
	cov.Reset()
	covData := mat.NewDense(3, 3, nil)
	for _, q := range positions {
		d := q.Sub(centroid)
		dv := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
		var outer mat.Dense
		outer.Outer(1, dv, dv)
		covData.Add(covData, &outer)
	}
	covData.Scale(1/float64(len(positions)), covData)
	cov = *mat.NewSymDense(3, symmetrize(covData))

	var eig mat.EigenSym
	ok := eig.Factorize(&cov, true)
	if !ok {
		p.Flags = p.Flags.Clear(pkg.NORMAL_OK)
		return
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	minIdx := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[minIdx] {
			minIdx = i
		}
	}

	n := geom.Vec3{X: vectors.At(0, minIdx), Y: vectors.At(1, minIdx), Z: vectors.At(2, minIdx)}
	if !n.IsFinite() || n.NormSq() < 1e-9 {
		p.Flags = p.Flags.Clear(pkg.NORMAL_OK)
		return
	}
	n = n.Normalize()
	if n.Dot(geom.WorldUp) < 0 {
		n = n.Scale(-1)
	}

	p.Normal = n
	p.Flags = p.Flags.Set(pkg.NORMAL_OK)
}

func symmetrize(d *mat.Dense) []float64 {
	out := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = d.At(i, j)
		}
	}
	return out
}

func (e *Engine) neighborPositions(p *datastructure.Point, neighbors []spatialindex.Neighbor) []geom.Vec3 {
	out := make([]geom.Vec3, 0, len(neighbors)+1)
	out = append(out, p.Position)
	for _, n := range neighbors {
		np := e.store.Get(n.Index)
		if np == nil {
			continue
		}
		out = append(out, np.Position)
	}
	return out
}

func centroidOf(pts []geom.Vec3) geom.Vec3 {
	var sum geom.Vec3
	for _, p := range pts {
		sum = sum.Add(p)
	}
	if len(pts) == 0 {
		return sum
	}
	return sum.Scale(1 / float64(len(pts)))
}

// computeGroundDiff projects each neighbor onto the local normal axis
// (spec §4.3 step 3) and records min/max/std/mean-abs of the projected
// heights.
func (e *Engine) computeGroundDiff(p *datastructure.Point, neighbors []spatialindex.Neighbor) {
	if !p.Flags.Has(pkg.NORMAL_OK) || len(neighbors) == 0 {
		p.GroundDiffMin = 0
		p.GroundDiffMax = 0
		p.GroundDiffStd = 0
		p.MeanAbsGroundDiff = 0
		return
	}

	diffs := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		np := e.store.Get(n.Index)
		if np == nil {
			continue
		}
		d := np.Position.Sub(p.Position).Dot(p.Normal)
		diffs = append(diffs, d)
	}
	if len(diffs) == 0 {
		return
	}

	min, max := diffs[0], diffs[0]
	var sum, sumAbs float64
	for _, d := range diffs {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		sum += d
		sumAbs += math.Abs(d)
	}
	mean := sum / float64(len(diffs))
	var variance float64
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(diffs))

	p.GroundDiffMin = min
	p.GroundDiffMax = max
	p.GroundDiffStd = math.Sqrt(variance)
	p.MeanAbsGroundDiff = sumAbs / float64(len(diffs))
}

// computeClearance counts neighbors in the vertical clearance band along
// the normal axis within clearanceRadius of v's axis (spec §4.3 step 4).
func (e *Engine) computeClearance(p *datastructure.Point, neighbors []spatialindex.Neighbor, live config.LiveParams) {
	p.NumObstaclePts = 0
	p.MinDistToObstacle = math.Inf(1)

	if !p.Flags.Has(pkg.NORMAL_OK) {
		return
	}

	for _, n := range neighbors {
		np := e.store.Get(n.Index)
		if np == nil {
			continue
		}
		d := np.Position.Sub(p.Position)
		height := d.Dot(p.Normal)
		horizontal := d.Sub(p.Normal.Scale(height)).Norm()

		if horizontal <= live.ClearanceRadius && height >= live.ClearanceLow && height <= live.ClearanceHigh {
			p.NumObstaclePts++
			dist := d.Norm()
			if dist < p.MinDistToObstacle {
				p.MinDistToObstacle = dist
			}
		}
	}
}

// detectEdge flags a spatially asymmetric neighborhood — the centroid of
// the neighbors offset from v by more than edgeMinCentroidOffset times the
// neighborhood radius — as a frontier indicator (spec §4.3 step 5).
func (e *Engine) detectEdge(p *datastructure.Point, neighbors []spatialindex.Neighbor) {
	p.NumEdgeNeighbors = 0
	if len(neighbors) == 0 {
		return
	}
	live := e.live.Load()

	var sum geom.Vec3
	for _, n := range neighbors {
		np := e.store.Get(n.Index)
		if np == nil {
			continue
		}
		sum = sum.Add(np.Position.Sub(p.Position))
	}
	centroidOffset := sum.Scale(1 / float64(len(neighbors))).Norm()

	if centroidOffset > live.EdgeMinCentroidOffset*e.neighborhoodRadius {
		p.NumEdgeNeighbors = 1
	}
}

// applyTraversability implements spec §3's TRAVERSABLE predicate and
// derives EDGE/OBSTACLE from it.
func (e *Engine) applyTraversability(p *datastructure.Point, live config.LiveParams) {
	p.Flags = p.Flags.Clear(pkg.TRAVERSABLE).Clear(pkg.EDGE).Clear(pkg.OBSTACLE)

	if p.NumObstaclePts >= live.MinPointsObstacle {
		p.Flags = p.Flags.Set(pkg.OBSTACLE)
	}

	if !p.Flags.Has(pkg.NORMAL_OK) {
		return
	}

	traversable := datastructure.Le(p.PitchAngle(), e.maxPitch) &&
		datastructure.Le(p.RollAngle(), e.maxRoll) &&
		datastructure.Le(p.GroundDiffStd, live.MaxGroundDiffStd) &&
		datastructure.Le(p.MeanAbsGroundDiff, live.MaxMeanAbsGroundDiff) &&
		p.NumObstaclePts < live.MinPointsObstacle &&
		datastructure.Ge(p.MinDistToObstacle, live.MinDistToObstacle)

	if !traversable {
		return
	}

	p.Flags = p.Flags.Set(pkg.TRAVERSABLE)
	if p.NumEdgeNeighbors >= 1 {
		p.Flags = p.Flags.Set(pkg.EDGE)
	}
}
