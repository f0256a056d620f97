// Package planner implements the exploration/directed path planner from
// spec §4.7: start resolution, single-source Dijkstra over the
// neighborhood graph, goal selection (directed or exploration), path
// tracing and pose orientation. Grounded in the teacher's
// pkg/engine/routing (heap-driven Dijkstra, VertexInfo-style predecessor
// tracking) but flattened from CRP's multilevel overlay to a single-level
// graph, since this domain has no partitioning.
package planner

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/config"
	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/transform"
	"go.uber.org/zap"
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
)

// Pose is a position + orientation in the map frame.
type Pose struct {
	Position    geom.Vec3
	Orientation geom.Quat
}

// IsFinitePosition reports whether Position has no NaN/Inf component; a
// non-finite position is the sentinel spec §6 uses for "use self" (start)
// or "explore" (goal).
func (p Pose) IsFinitePosition() bool {
	return p.Position.IsFinite()
}

// Request bundles the Plan RPC's inputs (spec §6).
type Request struct {
	Start     Pose
	Goal      Pose
	Tolerance float64
}

// Planner ties the point store, config and transform source together into
// the plan() entry point. It has its own tiny state-machine mutex (spec
// §5: "Initialized flag has its own mutex") independent of the point
// store's.
type Planner struct {
	store     *datastructure.PointStore
	params    *config.Params
	transform transform.Source
	log       *zap.Logger

	stagingBox StagingBox

	stateMu sync.Mutex
	state   state

	rng *rand.Rand
}

func New(store *datastructure.PointStore, params *config.Params, src transform.Source, box StagingBox, log *zap.Logger) *Planner {
	return &Planner{
		store:      store,
		params:     params,
		transform:  src,
		log:        log,
		stagingBox: box,
		rng:        rand.New(rand.NewSource(1)),
	}
}

// MarkInitialized transitions Uninitialized -> Initialized. Called once
// startup teammate discovery (spec §4.8) completes, on timeout or success.
func (pl *Planner) MarkInitialized() {
	pl.stateMu.Lock()
	defer pl.stateMu.Unlock()
	pl.state = stateInitialized
}

func (pl *Planner) initialized() bool {
	pl.stateMu.Lock()
	defer pl.stateMu.Unlock()
	return pl.state == stateInitialized
}

// Plan implements spec §4.7's plan() entry point end to end.
func (pl *Planner) Plan(ctx context.Context, req Request) ([]Pose, error) {
	if !pl.initialized() {
		return nil, ErrNotInitialized
	}

	pl.store.RLock()
	defer pl.store.RUnlock()

	n := pl.store.LenLocked()
	if n < pl.params.NeighborhoodKNN {
		return nil, ErrMapTooSmall
	}

	startPose := req.Start
	if !startPose.IsFinitePosition() {
		self, err := pl.selfPose(ctx)
		if err != nil {
			pl.log.Warn("plan: self pose unavailable", zap.Error(err))
			return nil, ErrNoStart
		}
		startPose = self
	}

	tolerance := req.Tolerance
	if tolerance < pl.params.NeighborhoodRadius {
		tolerance = pl.params.NeighborhoodRadius
	}
	startVertex, ok := pl.resolveStart(startPose.Position, tolerance)
	if !ok {
		pl.log.Warn("plan: no traversable vertex near start", zap.Float64("tolerance", tolerance))
		return nil, ErrNoStart
	}

	graph := NewGraph(pl.store, pl.params.NeighborhoodRadius, pl.params.MaxNNHeightDiff)
	dist, pred := shortestPathsFrom(graph, startVertex, func(v, u datastructure.Index) float64 {
		return EdgeCost(pl.store, v, u)
	})
	pl.syncPlanState(dist)

	goalVertex, err := pl.selectGoal(req.Goal, dist)
	if err != nil {
		pl.log.Warn("plan: goal selection failed", zap.Error(err))
		return nil, err
	}

	path := tracePath(pred, startVertex, goalVertex)
	poses := pl.tracePoses(path, startPose.Orientation)
	return poses, nil
}

// syncPlanState mirrors the just-computed Dijkstra distances onto each
// point's PathCost, resetting Reward/RelativeCost for the run (spec §4.7:
// "reset and recomputed on every plan; not persisted across plans").
func (pl *Planner) syncPlanState(dist []float64) {
	for v := 0; v < len(dist); v++ {
		p := pl.store.GetLocked(datastructure.Index(v))
		if p == nil {
			continue
		}
		p.ResetPlanState()
		p.PathCost = dist[v]
	}
}

func (pl *Planner) selfPose(ctx context.Context) (Pose, error) {
	t, err := pl.transform.Lookup(ctx, pl.params.MapFrame, pl.params.RobotFrame, time.Now(), pl.params.MaxCloudAge)
	if err != nil {
		return Pose{}, err
	}
	return Pose{
		Position:    t.Translation,
		Orientation: geom.QuatFromFrame(t.Rotation),
	}, nil
}

// resolveStart finds candidate start vertices within tolerance of pos,
// filters to TRAVERSABLE, and picks either the closest (default) or a
// uniform-random one (random_start) — spec §4.7 step 1.
func (pl *Planner) resolveStart(pos geom.Vec3, tolerance float64) (datastructure.Index, bool) {
	candidates := pl.store.NearbyIndices(pos, tolerance)

	traversable := candidates[:0:0]
	for _, c := range candidates {
		p := pl.store.GetLocked(c.Index)
		if p != nil && p.IsTraversable() {
			traversable = append(traversable, c)
		}
	}
	if len(traversable) == 0 {
		return 0, false
	}

	if pl.params.RandomStart {
		return traversable[pl.rng.Intn(len(traversable))].Index, true
	}

	best := traversable[0]
	for _, c := range traversable[1:] {
		if c.SqDist < best.SqDist {
			best = c
		}
	}
	return best.Index, true
}

// selectGoal implements spec §4.7 step 3: directed goal selection when
// req.Goal has a finite position, exploration goal selection otherwise.
func (pl *Planner) selectGoal(goal Pose, dist []float64) (datastructure.Index, error) {
	if goal.IsFinitePosition() {
		return pl.selectDirectedGoal(goal.Position, dist)
	}
	return pl.selectExplorationGoal(dist)
}

// selectDirectedGoal picks the reachable vertex closest to goalPos. It fails
// with ErrNoPath when nothing is reachable, or when the map vertex nearest
// to goalPos is itself unreachable (the goal lies in a part of the graph the
// start cannot reach).
func (pl *Planner) selectDirectedGoal(goalPos geom.Vec3, dist []float64) (datastructure.Index, error) {
	best := datastructure.Index(0)
	bestSqDist := math.Inf(1)
	found := false
	nearestSqDist := math.Inf(1)
	nearestReachable := false

	for v := 0; v < len(dist); v++ {
		p := pl.store.GetLocked(datastructure.Index(v))
		if p == nil {
			continue
		}
		d := geom.SqDist(p.Position, goalPos)
		reachable := dist[v] < pkg.INF_WEIGHT
		if d < nearestSqDist {
			nearestSqDist = d
			nearestReachable = reachable
		}
		if !reachable {
			continue
		}
		if d < bestSqDist {
			bestSqDist = d
			best = datastructure.Index(v)
			found = true
		}
	}
	if !found || !nearestReachable {
		return 0, ErrNoPath
	}
	return best, nil
}

func (pl *Planner) selectExplorationGoal(dist []float64) (datastructure.Index, error) {
	minVp, maxVp, selfFactor := pl.params.MinVpDistance, pl.params.MaxVpDistance, pl.params.SelfFactor

	best := datastructure.Index(0)
	bestCost := math.Inf(1)
	found := false

	for v := 0; v < len(dist); v++ {
		if dist[v] >= pkg.INF_WEIGHT {
			continue
		}
		p := pl.store.GetLocked(datastructure.Index(v))
		if p == nil {
			continue
		}
		r := reward(p, minVp, maxVp, selfFactor, pl.stagingBox)
		p.Reward = r
		rc, eligible := relativeCost(dist[v], r)
		p.RelativeCost = rc
		if !eligible {
			continue
		}
		if rc < bestCost {
			bestCost = rc
			best = datastructure.Index(v)
			found = true
		}
	}
	if !found {
		return 0, ErrNoGoal
	}
	return best, nil
}

// tracePoses assigns orientations along the traced path (spec §4.7 step
// 5): x-axis is the tangent to the next vertex, z-axis the surface normal
// flipped to agree with world-up, y = z cross x. The first pose keeps
// startOrientation.
func (pl *Planner) tracePoses(path []datastructure.Index, startOrientation geom.Quat) []Pose {
	poses := make([]Pose, len(path))
	for i, v := range path {
		p := pl.store.GetLocked(v)
		poses[i] = Pose{Position: p.Position}

		if i == 0 {
			poses[i].Orientation = startOrientation
			continue
		}
		tangent := p.Position.Sub(poses[i-1].Position)
		frame := geom.OrientFromTangentAndNormal(tangent, p.Normal)
		poses[i].Orientation = geom.QuatFromFrame(frame)
	}
	return poses
}
