package wire

import (
	"github.com/fieldcortex/terrane/pkg/planner"
	"github.com/twpayne/go-polyline"
)

// EncodePathPolyline ground-projects a planned path's poses to (x, y) and
// encodes them with the Google polyline algorithm, for the lightweight
// observer feed that wants a compact 2-D preview alongside the full 3-D
// poses (spec §6's path output topic).
func EncodePathPolyline(poses []planner.Pose) []byte {
	coords := make([][]float64, len(poses))
	for i, p := range poses {
		coords[i] = []float64{p.Position.X, p.Position.Y}
	}
	return polyline.EncodeCoords(nil, coords)
}
