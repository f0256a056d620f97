// Package wire serializes point-store slices for the output topics in
// spec §6 (full map, dirty subset, debug selections) and encodes planned
// paths. Binary cloud framing follows the teacher's graph_io.go: a small
// fixed header then flat arrays, optionally bzip2-compressed
// (github.com/dsnet/compress), the same library the teacher uses for its
// own binary graph assets.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/fieldcortex/terrane/pkg"
	"github.com/fieldcortex/terrane/pkg/datastructure"
)

const cloudMagic uint32 = 0x54435033 // "TCP3"

// WriteCloud serializes the points at the given indices (in order) to w:
// a header (magic, count) followed by, per point, position, normal and
// flags. Used for create_cloud (full map) and create_dirty_cloud
// (dirty-only) per spec §4.2 — the caller picks which indices to pass.
func WriteCloud(w io.Writer, store *datastructure.PointStore, indices []datastructure.Index) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, cloudMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(indices))); err != nil {
		return err
	}

	for _, idx := range indices {
		p := store.Get(idx)
		if p == nil {
			continue
		}
		fields := []float64{
			p.Position.X, p.Position.Y, p.Position.Z,
			p.Normal.X, p.Normal.Y, p.Normal.Z,
		}
		for _, f := range fields {
			if err := binary.Write(bw, binary.LittleEndian, f); err != nil {
				return err
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, uint8(p.Flags)); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteDebugCloud wraps WriteCloud with optional bzip2 compression, for the
// heavier diagnostic `create_debug_cloud` emission where bandwidth matters
// more than per-call latency.
func WriteDebugCloud(w io.Writer, store *datastructure.PointStore, indices []datastructure.Index, compress bool) error {
	if !compress {
		return WriteCloud(w, store, indices)
	}

	bz, err := bzip2.NewWriter(w, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	if err := WriteCloud(bz, store, indices); err != nil {
		bz.Close()
		return err
	}
	return bz.Close()
}

// CloudPoint is the decoded form of one serialized point, for observers
// reading a stream back.
type CloudPoint struct {
	Position [3]float64
	Normal   [3]float64
	Flags    pkg.Flags
}

// ReadCloud decodes a stream produced by WriteCloud.
func ReadCloud(r io.Reader) ([]CloudPoint, error) {
	br := bufio.NewReader(r)

	var magic, count uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	out := make([]CloudPoint, 0, count)
	for i := uint32(0); i < count; i++ {
		var cp CloudPoint
		vals := make([]float64, 6)
		for j := range vals {
			if err := binary.Read(br, binary.LittleEndian, &vals[j]); err != nil {
				return nil, err
			}
		}
		cp.Position = [3]float64{vals[0], vals[1], vals[2]}
		cp.Normal = [3]float64{vals[3], vals[4], vals[5]}

		var flags uint8
		if err := binary.Read(br, binary.LittleEndian, &flags); err != nil {
			return nil, err
		}
		cp.Flags = pkg.Flags(flags)

		out = append(out, cp)
	}
	return out, nil
}
