package spatialindex

import (
	"testing"

	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUsableImmediatelyForQueries(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.Add([]geom.Vec3{{X: 0}, {X: 1}, {X: 2}}, 0)

	assert.Equal(t, 3, idx.Len())
	hits := idx.Radius(geom.Vec3{X: 1}, 0.5)
	require.Len(t, hits, 1)
	assert.Equal(t, pkg.Index(1), hits[0].Index)
}

func TestRadiusReturnsEverythingWithinBound(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.Add([]geom.Vec3{{X: 0}, {X: 1}, {X: 2}, {X: 10}}, 0)

	hits := idx.Radius(geom.Vec3{X: 1}, 1.5)
	var ids []pkg.Index
	for _, h := range hits {
		ids = append(ids, h.Index)
	}
	assert.ElementsMatch(t, []pkg.Index{0, 1, 2}, ids)
}

func TestRadiusExcludesPointsOutsideBound(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.Add([]geom.Vec3{{X: 0}, {X: 100}}, 0)

	hits := idx.Radius(geom.Vec3{X: 0}, 1.0)
	require.Len(t, hits, 1)
	assert.Equal(t, pkg.Index(0), hits[0].Index)
}

func TestKNNReturnsSortedByDistance(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.Add([]geom.Vec3{{X: 5}, {X: 0}, {X: 2}, {X: 9}}, 0)

	got := idx.KNN(geom.Vec3{X: 0}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, pkg.Index(1), got[0].Index) // X:0, SqDist 0
	assert.Equal(t, pkg.Index(2), got[1].Index) // X:2, SqDist 4
	assert.True(t, got[0].SqDist <= got[1].SqDist)
}

func TestKNNCappedByAvailablePoints(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.Add([]geom.Vec3{{X: 0}, {X: 1}}, 0)

	got := idx.KNN(geom.Vec3{X: 0}, 10)
	assert.Len(t, got, 2)
}

func TestKNNOnEmptyIndex(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	assert.Nil(t, idx.KNN(geom.Vec3{}, 5))
}

func TestAddWithNonZeroOffset(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.Add([]geom.Vec3{{X: 0}, {X: 1}}, 0)
	idx.Add([]geom.Vec3{{X: 2}, {X: 3}}, 2)

	assert.Equal(t, 4, idx.Len())
	hits := idx.Radius(geom.Vec3{X: 3}, 0.1)
	require.Len(t, hits, 1)
	assert.Equal(t, pkg.Index(3), hits[0].Index)
}
