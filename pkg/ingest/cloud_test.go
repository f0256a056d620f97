package ingest

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPointStep = 24 // x,y,z,normal_x,normal_y,normal_z as float32

func putFloat32(data []byte, offset uint32, v float64) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], math.Float32bits(float32(v)))
}

func encodePoint(data []byte, base uint32, x, y, z, nx, ny, nz float64) {
	putFloat32(data, base+0, x)
	putFloat32(data, base+4, y)
	putFloat32(data, base+8, z)
	putFloat32(data, base+12, nx)
	putFloat32(data, base+16, ny)
	putFloat32(data, base+20, nz)
}

func testFields() []Field {
	return []Field{
		{Name: "x", Offset: 0},
		{Name: "y", Offset: 4},
		{Name: "z", Offset: 8},
		{Name: "normal_x", Offset: 12},
		{Name: "normal_y", Offset: 16},
		{Name: "normal_z", Offset: 20},
	}
}

func TestDecodePointsHappyPath(t *testing.T) {
	t.Parallel()

	data := make([]byte, testPointStep*2)
	encodePoint(data, 0, 1, 2, 3, 0, 0, 1)
	encodePoint(data, testPointStep, 4, 5, 6, 0, 1, 0)

	c := &Cloud{Width: 2, PointStep: testPointStep, RowStep: testPointStep * 2, Fields: testFields(), Data: data}
	positions, normals, err := c.decodePoints("x", "normal_x")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.Len(t, normals, 2)

	assert.InDelta(t, 1, positions[0].X, 1e-6)
	assert.InDelta(t, 5, positions[1].Y, 1e-6)
	assert.InDelta(t, 1, normals[0].Z, 1e-6)
}

func TestDecodePointsSkipsNonFinitePositions(t *testing.T) {
	t.Parallel()

	data := make([]byte, testPointStep*2)
	encodePoint(data, 0, math.NaN(), 0, 0, 0, 0, 1)
	encodePoint(data, testPointStep, 1, 1, 1, 0, 0, 1)

	c := &Cloud{Width: 2, PointStep: testPointStep, RowStep: testPointStep * 2, Fields: testFields(), Data: data}
	positions, _, err := c.decodePoints("x", "normal_x")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 1, positions[0].X, 1e-6)
}

func TestDecodePointsMissingFieldErrors(t *testing.T) {
	t.Parallel()

	c := &Cloud{Width: 1, PointStep: testPointStep, RowStep: testPointStep, Fields: testFields()[:2], Data: make([]byte, testPointStep)}
	_, _, err := c.decodePoints("x", "normal_x")
	assert.Error(t, err)
}

func TestDecodePointsInconsistentStrideErrors(t *testing.T) {
	t.Parallel()

	c := &Cloud{Width: 2, PointStep: testPointStep, RowStep: testPointStep, Fields: testFields(), Data: make([]byte, testPointStep*2)}
	_, _, err := c.decodePoints("x", "normal_x")
	assert.Error(t, err)
}

func TestNextAxis(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "y", nextAxis("x"))
	assert.Equal(t, "normal_z", nextAxis("normal_y"))
	assert.Equal(t, "z", nextAxis("z")) // no further axis after z
}
