// Package transform resolves rigid transforms between coordinate frames
// (spec §6: "given (target_frame, source_frame, time, timeout) returns a
// rigid transform or fails"). It is deliberately small: the planner and
// ingestion pipeline only ever need "where is frame X relative to the map,
// at roughly time T", never a full transform tree.
package transform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldcortex/terrane/pkg/geom"
)

// Rigid3 is a rotation + translation from source frame into target frame.
type Rigid3 struct {
	Translation geom.Vec3
	Rotation    geom.Frame3
	Stamp       time.Time
}

// Apply maps a point expressed in the source frame into the target frame.
func (r Rigid3) Apply(p geom.Vec3) geom.Vec3 {
	rotated := geom.Vec3{
		X: r.Rotation.X.X*p.X + r.Rotation.Y.X*p.Y + r.Rotation.Z.X*p.Z,
		Y: r.Rotation.X.Y*p.X + r.Rotation.Y.Y*p.Y + r.Rotation.Z.Y*p.Z,
		Z: r.Rotation.X.Z*p.X + r.Rotation.Y.Z*p.Y + r.Rotation.Z.Z*p.Z,
	}
	return rotated.Add(r.Translation)
}

// Identity is the frame with no rotation or translation.
func Identity() Rigid3 {
	return Rigid3{
		Rotation: geom.Frame3{X: geom.Vec3{X: 1}, Y: geom.Vec3{Y: 1}, Z: geom.Vec3{Z: 1}},
	}
}

// Source looks up the transform from source to target at (approximately)
// time at, waiting up to timeout for it to become available. Used both for
// cloud-frame conversion (ingestion) and for actor pose sampling (viewpoint
// ledger, planner self-pose resolution).
type Source interface {
	Lookup(ctx context.Context, target, source string, at time.Time, timeout time.Duration) (Rigid3, error)
}

// ErrUnavailable is returned by Static (and expected of any Source
// implementation) when no transform is known for the requested pair within
// the timeout.
var ErrUnavailable = fmt.Errorf("transform unavailable")

// Static is an in-memory transform source: a fixed set of rigid
// transforms keyed by (target, source) frame pair, ignoring the requested
// time and timeout, useful for tests and for deployments where every
// sensor/robot frame is a fixed, known offset from the map.
type Static struct {
	mu         sync.RWMutex
	transforms map[key]Rigid3
}

type key struct {
	target, source string
}

func NewStatic() *Static {
	return &Static{transforms: make(map[key]Rigid3)}
}

// Set registers (or replaces) the transform from source to target.
func (s *Static) Set(target, source string, t Rigid3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transforms[key{target, source}] = t
}

func (s *Static) Lookup(ctx context.Context, target, source string, at time.Time, timeout time.Duration) (Rigid3, error) {
	if target == source {
		return Identity(), nil
	}
	s.mu.RLock()
	t, ok := s.transforms[key{target, source}]
	s.mu.RUnlock()
	if !ok {
		return Rigid3{}, fmt.Errorf("%w: %s -> %s", ErrUnavailable, source, target)
	}
	select {
	case <-ctx.Done():
		return Rigid3{}, ctx.Err()
	default:
	}
	return t, nil
}
