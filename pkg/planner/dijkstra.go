package planner

import (
	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/util"
)

// sssp is the working state of one Dijkstra run, grounded in the teacher's
// pkg/engine/routing.Dijkstra shape (a heap of PriorityQueueNode plus a
// parallel per-vertex settle/parent array) but over a single-level vertex
// graph instead of CRP's overlay entry/exit points.
type sssp struct {
	graph *Graph

	dist   []float64
	pred   []datastructure.Index
	node   []*datastructure.PriorityQueueNode[datastructure.Index]
	settle []bool

	pq *datastructure.MinHeap[datastructure.Index]
}

// shortestPathsFrom runs Dijkstra from s over g, using cost as the
// edge-cost oracle (spec §4.5). dist[v] stays at pkg.INF_WEIGHT (a large
// finite sentinel, not +Inf) for unreachable v; pred[v]
// is only meaningful for reachable v, and pred[s] == s (spec §8's
// "predecessors form a tree rooted at the chosen start" plus the assertion
// in spec §4.7 step 4).
func shortestPathsFrom(g *Graph, s datastructure.Index, cost func(v, u datastructure.Index) float64) (dist []float64, pred []datastructure.Index) {
	n := g.NumVertices()

	s2 := &sssp{
		graph:  g,
		dist:   make([]float64, n),
		pred:   make([]datastructure.Index, n),
		node:   make([]*datastructure.PriorityQueueNode[datastructure.Index], n),
		settle: make([]bool, n),
		pq:     datastructure.NewFourAryHeap[datastructure.Index](),
	}
	s2.pq.Preallocate(n)

	for v := 0; v < n; v++ {
		s2.dist[v] = pkg.INF_WEIGHT
		s2.pred[v] = datastructure.Index(v)
	}

	s2.dist[s] = 0
	startNode := datastructure.NewPriorityQueueNode(0, s)
	s2.node[s] = startNode
	s2.pq.Insert(startNode)

	for !s2.pq.IsEmpty() {
		top, err := s2.pq.ExtractMin()
		if err != nil {
			break
		}
		v := top.GetItem()
		if s2.settle[v] {
			continue
		}
		s2.settle[v] = true

		for _, u := range g.OutEdges(v) {
			if s2.settle[u] {
				continue
			}
			c := cost(v, u)
			if c <= 0 || c >= pkg.INF_WEIGHT {
				continue
			}
			newDist := s2.dist[v] + c
			if newDist >= s2.dist[u] {
				continue
			}
			s2.dist[u] = newDist
			s2.pred[u] = v
			if s2.node[u] != nil && !s2.settle[u] {
				s2.pq.DecreaseKey(s2.node[u], newDist)
			} else if s2.node[u] == nil {
				un := datastructure.NewPriorityQueueNode(newDist, u)
				s2.node[u] = un
				s2.pq.Insert(un)
			}
		}
	}

	return s2.dist, s2.pred
}

// tracePath walks predecessors from goal back to start and reverses,
// asserting pred[start] == start (spec §4.7 step 4).
func tracePath(pred []datastructure.Index, start, goal datastructure.Index) []datastructure.Index {
	util.AssertPanic(pred[start] == start, "planner: predecessor tree root is not its own predecessor")

	var rev []datastructure.Index
	v := goal
	for {
		rev = append(rev, v)
		if v == start {
			break
		}
		v = pred[v]
	}

	return util.ReverseG(rev)
}
