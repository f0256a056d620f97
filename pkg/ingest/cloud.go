package ingest

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/fieldcortex/terrane/pkg/geom"
)

// Field describes one named column of a dense row-major point cloud (spec
// §6): name and byte offset within a point. Every field is read as a
// little-endian float32; no datatype is recorded or checked.
type Field struct {
	Name   string
	Offset uint32
}

// Cloud is one inbound point cloud message (spec §6): row-major, dense,
// row_step = point_step * width, x/y/z/normal_x/y/z as float32, arbitrary
// extra fields ignored.
type Cloud struct {
	Frame string
	Stamp time.Time

	Width     uint32
	PointStep uint32
	RowStep   uint32
	Fields    []Field

	Data []byte
}

func (c *Cloud) field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// decodePoints extracts (position, normal) pairs for every row using the
// configured field names, skipping rows whose decoded position isn't
// finite (normals are passed through unchecked).
func (c *Cloud) decodePoints(positionName, normalPrefix string) ([]geom.Vec3, []geom.Vec3, error) {
	px, ok := c.field(positionName)
	if !ok {
		return nil, nil, fmt.Errorf("missing field %q", positionName)
	}
	py, ok := c.field(nextAxis(positionName))
	if !ok {
		return nil, nil, fmt.Errorf("missing field %q", nextAxis(positionName))
	}
	pz, ok := c.field(nextAxis(nextAxis(positionName)))
	if !ok {
		return nil, nil, fmt.Errorf("missing field %q", nextAxis(nextAxis(positionName)))
	}

	nx, ok := c.field(normalPrefix)
	if !ok {
		return nil, nil, fmt.Errorf("missing field %q", normalPrefix)
	}
	ny, ok := c.field(nextAxis(normalPrefix))
	if !ok {
		return nil, nil, fmt.Errorf("missing field %q", nextAxis(normalPrefix))
	}
	nz, ok := c.field(nextAxis(nextAxis(normalPrefix)))
	if !ok {
		return nil, nil, fmt.Errorf("missing field %q", nextAxis(nextAxis(normalPrefix)))
	}

	if c.PointStep == 0 || c.RowStep != c.PointStep*c.Width {
		return nil, nil, fmt.Errorf("inconsistent row stride: row_step=%d point_step*width=%d", c.RowStep, c.PointStep*c.Width)
	}

	n := int(c.Width)
	positions := make([]geom.Vec3, 0, n)
	normals := make([]geom.Vec3, 0, n)

	for i := 0; i < n; i++ {
		base := uint32(i) * c.PointStep
		if int(base+c.PointStep) > len(c.Data) {
			break
		}
		pos := geom.Vec3{
			X: readFloat32(c.Data, base+px.Offset),
			Y: readFloat32(c.Data, base+py.Offset),
			Z: readFloat32(c.Data, base+pz.Offset),
		}
		nrm := geom.Vec3{
			X: readFloat32(c.Data, base+nx.Offset),
			Y: readFloat32(c.Data, base+ny.Offset),
			Z: readFloat32(c.Data, base+nz.Offset),
		}
		if !pos.IsFinite() {
			continue
		}
		positions = append(positions, pos)
		normals = append(normals, nrm)
	}
	return positions, normals, nil
}

func nextAxis(name string) string {
	if len(name) == 0 {
		return name
	}
	switch name[len(name)-1] {
	case 'x':
		return name[:len(name)-1] + "y"
	case 'y':
		return name[:len(name)-1] + "z"
	default:
		return name
	}
}

func readFloat32(data []byte, offset uint32) float64 {
	bits := binary.LittleEndian.Uint32(data[offset : offset+4])
	return float64(math.Float32frombits(bits))
}
