// Package spatialindex provides approximate nearest-neighbor and radius
// queries over the mutable 3-D point cloud backing the map. It generalizes
// the teacher's 2-D lon/lat R-tree (pkg/spatialindex/rtree.go in
// Navigatorx, built on github.com/tidwall/rtree) to 3-D map-frame points
// with incremental, in-place additions instead of a one-shot Build.
package spatialindex

import (
	"sort"
	"sync"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/tidwall/rtree"
)

// Index is a thread-safe-for-readers, exclusive-for-writers 3-D spatial
// index over point-store vertex ids. See spec §4.1.
type Index struct {
	mu sync.RWMutex

	tr        rtree.RTreeG[pkg.Index]
	positions []geom.Vec3 // parallel to point-store indices, kept in sync on Add
}

func NewIndex() *Index {
	return &Index{
		positions: make([]geom.Vec3, 0),
	}
}

func box(p geom.Vec3) ([3]float64, [3]float64) {
	return [3]float64{p.X, p.Y, p.Z}, [3]float64{p.X, p.Y, p.Z}
}

// Add appends points to the index. It is usable for queries immediately
// after returning; callers must hold exclusive access (no concurrent reader
// or writer) for the duration of the call. idOffset is the vertex id of
// points[0] (the point store's length before the append).
func (idx *Index) Add(points []geom.Vec3, idOffset pkg.Index) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, p := range points {
		id := idOffset + pkg.Index(i)
		min, max := box(p)
		idx.tr.Insert(min, max, id)
		if int(id) == len(idx.positions) {
			idx.positions = append(idx.positions, p)
		} else {
			// defensive: keep positions dense even if called out of order.
			for len(idx.positions) <= int(id) {
				idx.positions = append(idx.positions, geom.Vec3{})
			}
			idx.positions[id] = p
		}
	}
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.positions)
}

type Neighbor struct {
	Index  pkg.Index
	SqDist float64
}

// Radius returns all indices within r of p (unsorted, per spec §4.1 —
// callers must not assume order).
func (idx *Index) Radius(p geom.Vec3, r float64) []Neighbor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	r2 := r * r
	min := [3]float64{p.X - r, p.Y - r, p.Z - r}
	max := [3]float64{p.X + r, p.Y + r, p.Z + r}

	out := make([]Neighbor, 0, 16)
	idx.tr.Search(min, max, func(_, _ [3]float64, id pkg.Index) bool {
		d := geom.SqDist(p, idx.positions[id])
		if d <= r2 {
			out = append(out, Neighbor{Index: id, SqDist: d})
		}
		return true
	})
	return out
}

// KNN returns up to k nearest indices to p, sorted by ascending distance.
// It grows a bounding-box search radius until it has at least k candidates
// (or has covered the whole index), then exact-distance-sorts and trims —
// sub-linear in the common case because the growth starts tight and the
// r-tree's box search only visits nodes overlapping the current box.
func (idx *Index) KNN(p geom.Vec3, k int) []Neighbor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.positions) == 0 {
		return nil
	}

	r := initialKNNRadius
	var candidates []Neighbor
	for {
		min := [3]float64{p.X - r, p.Y - r, p.Z - r}
		max := [3]float64{p.X + r, p.Y + r, p.Z + r}

		candidates = candidates[:0]
		idx.tr.Search(min, max, func(_, _ [3]float64, id pkg.Index) bool {
			candidates = append(candidates, Neighbor{Index: id, SqDist: geom.SqDist(p, idx.positions[id])})
			return true
		})

		if len(candidates) >= k || r > maxKNNRadius {
			break
		}
		r *= 2
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].SqDist < candidates[j].SqDist })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

const (
	initialKNNRadius = 0.5
	maxKNNRadius      = 1 << 16
)
