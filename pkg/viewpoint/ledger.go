// Package viewpoint implements the periodic self/teammate visitation
// tracker from spec §4.6: on each tick, sample every actor's pose and mark
// nearby points as recently seen by that actor, feeding the planner's
// exploration reward (spec §4.7).
package viewpoint

import (
	"context"
	"sync"
	"time"

	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/transform"
	"go.uber.org/zap"
)

// PoseLog is a compact diagnostic record of one observed actor pose.
type PoseLog struct {
	Actor    string
	Position geom.Vec3
	At       time.Time
}

// Ledger holds its own mutex, independent of the point store's and the
// spatial index's (spec §5: "Viewpoint ledger has its own mutex; never
// held while acquiring the index"). Ticks release the ledger lock before
// touching the store, so the two never nest.
type Ledger struct {
	store     *datastructure.PointStore
	transform transform.Source
	log       *zap.Logger

	mapFrame string
	selfName string
	actors   map[string]string // actor name -> frame, self included

	maxVpDistance float64
	lookupTimeout time.Duration

	mu    sync.Mutex
	poses []PoseLog
}

const selfActorName = "self"

func NewLedger(store *datastructure.PointStore, src transform.Source, mapFrame, selfFrame string,
	teammateFrames map[string]string, maxVpDistance float64, lookupTimeout time.Duration, log *zap.Logger) *Ledger {

	actors := make(map[string]string, len(teammateFrames)+1)
	for name, frame := range teammateFrames {
		actors[name] = frame
	}
	actors[selfActorName] = selfFrame

	return &Ledger{
		store:         store,
		transform:     src,
		log:           log,
		mapFrame:      mapFrame,
		selfName:      selfActorName,
		actors:        actors,
		maxVpDistance: maxVpDistance,
		lookupTimeout: lookupTimeout,
	}
}

// Tick samples every actor's pose and updates the visitation stats of
// every point within max_vp_distance of it (spec §4.6). Missing
// transforms are warnings, never fatal.
func (l *Ledger) Tick(ctx context.Context, now time.Time) {
	type sample struct {
		actor string
		pos   geom.Vec3
	}
	samples := make([]sample, 0, len(l.actors))

	for actor, frame := range l.actors {
		t, err := l.transform.Lookup(ctx, l.mapFrame, frame, now, l.lookupTimeout)
		if err != nil {
			l.log.Warn("viewpoint: transform unavailable", zap.String("actor", actor), zap.Error(err))
			continue
		}
		samples = append(samples, sample{actor: actor, pos: t.Translation})
	}

	l.mu.Lock()
	for _, s := range samples {
		l.poses = append(l.poses, PoseLog{Actor: s.actor, Position: s.pos, At: now})
	}
	if len(l.poses) > maxPoseLog {
		l.poses = l.poses[len(l.poses)-maxPoseLog:]
	}
	l.mu.Unlock()

	for _, s := range samples {
		l.applySample(s.actor, s.pos, now)
	}
}

const maxPoseLog = 2048

func (l *Ledger) applySample(actor string, pos geom.Vec3, now time.Time) {
	hits := l.store.NearbyIndices(pos, l.maxVpDistance)
	for _, h := range hits {
		p := l.store.Get(h.Index)
		if p == nil {
			continue
		}
		d := geom.Dist(pos, p.Position)
		t := float64(now.Unix())

		if actor == l.selfName {
			if d < p.DistToActor {
				p.DistToActor = d
			}
			if t > p.ActorLastVisit {
				p.ActorLastVisit = t
			}
			continue
		}

		if d < p.DistToOtherActors {
			p.DistToOtherActors = d
		}
		if t > p.OtherActorsLastVisit {
			p.OtherActorsLastVisit = t
		}
	}
}

// RecentPoses returns a snapshot of the diagnostic pose log (spec §4.6:
// "retains compact 3-vector logs of all observed poses for diagnostic
// emission").
func (l *Ledger) RecentPoses() []PoseLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PoseLog, len(l.poses))
	copy(out, l.poses)
	return out
}
