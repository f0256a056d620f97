package datastructure

import (
	"testing"

	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/spatialindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(pointsMinDist, neighborhoodRadius float64) *PointStore {
	idx := spatialindex.NewIndex()
	return NewPointStore(idx, pointsMinDist, neighborhoodRadius, 0.98)
}

func TestMergeAddsNewPoints(t *testing.T) {
	t.Parallel()

	store := newTestStore(0.1, 0.5)
	added := store.Merge([]geom.Vec3{{X: 0}, {X: 1}, {X: 2}}, geom.Vec3{})

	assert.Equal(t, 3, added)
	assert.Equal(t, 3, store.Len())
}

// TestMergeDedupWithinPointsMinDist is the round-trip law from spec §8:
// merging a cloud whose every point is within points_min_dist of an
// existing point does not change point count.
func TestMergeDedupWithinPointsMinDist(t *testing.T) {
	t.Parallel()

	store := newTestStore(0.2, 0.5)
	store.Merge([]geom.Vec3{{X: 0, Y: 0, Z: 0}}, geom.Vec3{})
	require.Equal(t, 1, store.Len())

	added := store.Merge([]geom.Vec3{{X: 0.05, Y: 0, Z: 0}}, geom.Vec3{})
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, store.Len())
}

// TestMergeIdempotent: re-merging the same cloud twice produces the same
// final state as merging it once (spec §8).
func TestMergeIdempotent(t *testing.T) {
	t.Parallel()

	cloud := []geom.Vec3{{X: 0}, {X: 1}, {X: 2}, {X: 3}}

	store := newTestStore(0.1, 0.5)
	store.Merge(cloud, geom.Vec3{})
	onceLen := store.Len()

	store.Merge(cloud, geom.Vec3{})
	assert.Equal(t, onceLen, store.Len())
}

func TestMergeMarksNeighborsDirty(t *testing.T) {
	t.Parallel()

	store := newTestStore(0.1, 0.5)
	store.Merge([]geom.Vec3{{X: 0, Y: 0, Z: 0}}, geom.Vec3{})
	for _, v := range store.DirtySnapshot() {
		store.ClearDirty(v)
	}
	require.Empty(t, store.DirtySnapshot())

	// A new point within 2*neighborhoodRadius of the existing one must
	// re-dirty the existing point too, not just itself (spec §4.2/§9).
	store.Merge([]geom.Vec3{{X: 0.6, Y: 0, Z: 0}}, geom.Vec3{})

	dirty := store.DirtySnapshot()
	assert.Len(t, dirty, 2)
}

func TestNoTwoPointsWithinMinDist(t *testing.T) {
	t.Parallel()

	store := newTestStore(0.3, 0.5)
	cloud := make([]geom.Vec3, 0, 50)
	for i := 0; i < 50; i++ {
		cloud = append(cloud, geom.Vec3{X: float64(i) * 0.05})
	}
	store.Merge(cloud, geom.Vec3{})

	all := store.AllIndices()
	for i := range all {
		pi := store.Get(all[i])
		for j := range all {
			if i == j {
				continue
			}
			pj := store.Get(all[j])
			assert.GreaterOrEqual(t, geom.Dist(pi.Position, pj.Position), store.PointsMinDist()-1e-9)
		}
	}
}

func TestClearDirtyRemovesFromSet(t *testing.T) {
	t.Parallel()

	store := newTestStore(0.1, 0.5)
	store.Merge([]geom.Vec3{{X: 0}}, geom.Vec3{})
	dirty := store.DirtySnapshot()
	require.Len(t, dirty, 1)

	store.ClearDirty(dirty[0])
	assert.Empty(t, store.DirtySnapshot())
	assert.False(t, store.Get(dirty[0]).IsDirty())
}

func TestNearbyIndicesWrapsIndexRadius(t *testing.T) {
	t.Parallel()

	store := newTestStore(0.1, 0.5)
	store.Merge([]geom.Vec3{{X: 0}, {X: 5}}, geom.Vec3{})

	hits := store.NearbyIndices(geom.Vec3{X: 0.1}, 1.0)
	require.Len(t, hits, 1)
	assert.Equal(t, store.Get(hits[0].Index).Position, geom.Vec3{X: 0})
}
