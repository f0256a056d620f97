// Package ingest implements spec §4.8: validate inbound clouds, resolve
// their frame into the map frame, gate and filter points, merge them into
// the point store, drive the feature engine over the resulting dirty set,
// and publish the dirty subset for observers. Grounded in the teacher's
// generic pkg/concurrent.WorkerPool (one worker per input stream) and its
// errgroup-based activity supervisor in pkg/http.Server.Use.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/fieldcortex/terrane/pkg/concurrent"
	"github.com/fieldcortex/terrane/pkg/config"
	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/features"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/transform"
	"github.com/fieldcortex/terrane/pkg/util"
	"github.com/fieldcortex/terrane/pkg/wire"
	"go.uber.org/zap"
)

var (
	ErrBadCloud             = errors.New("ingest: malformed cloud")
	ErrTransformUnavailable = errors.New("ingest: transform unavailable")
)

const (
	sensorRangeMin = 1.0
	sensorRangeMax = 25.0
	robotExclusion = 1.0
)

// Publisher receives serialized output for the observer topics (spec §6).
// The httpx websocket hub implements this.
type Publisher interface {
	Publish(topic string, data []byte)
}

// TeammatePositions returns the current best-known map-frame position of
// every teammate actor, for the optional filter_robots gate (spec §4.8
// step 3). The viewpoint ledger's RecentPoses feeds this in cmd/explorer.
type TeammatePositions func() []geom.Vec3

type outcome struct {
	added int
	err   error
}

// Pipeline owns nothing the planner or viewpoint ledger also own except
// the point store itself, which it only ever touches through Merge
// (exclusive), DirtySnapshot and the feature engine's RecomputeDirty, each
// taking the store lock on its own — never by holding RLock across a
// recompute.
type Pipeline struct {
	store     *datastructure.PointStore
	engine    *features.Engine
	transform transform.Source
	params    *config.Params
	pub       Publisher
	teammates TeammatePositions
	log       *zap.Logger

	pool *concurrent.WorkerPool[*Cloud, outcome]
}

func NewPipeline(store *datastructure.PointStore, engine *features.Engine, src transform.Source,
	params *config.Params, pub Publisher, teammates TeammatePositions, log *zap.Logger) *Pipeline {

	return &Pipeline{
		store:     store,
		engine:    engine,
		transform: src,
		params:    params,
		pub:       pub,
		teammates: teammates,
		log:       log,
		pool: concurrent.NewWorkerPool[*Cloud, outcome](
			util.MaxOrdered(1, params.NumInputClouds), util.MaxOrdered(1, params.InputQueueSize)),
	}
}

// Start launches one worker per configured input stream (spec §5: "cloud
// ingestion, one per input stream") and a goroutine that drains results,
// logging ingestion errors (spec §7: "ingestion errors are absorbed with a
// warning and never propagate to the plan RPC").
func (p *Pipeline) Start(ctx context.Context) {
	p.pool.Start(func(c *Cloud) outcome {
		added, err := p.ingestOne(ctx, c)
		return outcome{added: added, err: err}
	})

	go func() {
		for res := range p.pool.CollectResults() {
			if res.err != nil {
				p.log.Warn("ingest: dropped cloud", zap.Error(res.err))
			}
		}
	}()
}

// Submit enqueues an inbound cloud for ingestion. Blocks if the input
// queue (input_queue_size) is full, applying natural backpressure to the
// stream's own reader.
func (p *Pipeline) Submit(c *Cloud) {
	p.pool.AddJob(c)
}

// Stop closes the input queue and waits for in-flight ingestion to drain.
func (p *Pipeline) Stop() {
	p.pool.Close()
	p.pool.Wait()
}

func (p *Pipeline) ingestOne(ctx context.Context, c *Cloud) (int, error) {
	if err := p.validate(c); err != nil {
		return 0, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, p.params.MaxCloudAge)
	defer cancel()
	t, err := p.transform.Lookup(lookupCtx, p.params.MapFrame, c.Frame, c.Stamp, p.params.MaxCloudAge)
	if err != nil {
		return 0, ErrTransformUnavailable
	}

	positions, _, err := c.decodePoints(p.params.PositionName, p.params.NormalName)
	if err != nil {
		return 0, util.WrapErrorf(err, ErrBadCloud, "ingest: decode cloud fields: %v", err)
	}

	var teammatePositions []geom.Vec3
	if p.params.FilterRobots && p.teammates != nil {
		teammatePositions = p.teammates()
	}

	kept := make([]geom.Vec3, 0, len(positions))
	for _, local := range positions {
		n := local.Norm()
		if n < sensorRangeMin || n > sensorRangeMax {
			continue
		}
		mapPoint := t.Apply(local)
		if p.params.FilterRobots && nearAny(mapPoint, teammatePositions, robotExclusion) {
			continue
		}
		kept = append(kept, mapPoint)
	}

	if len(kept) == 0 {
		return 0, nil
	}

	origin := t.Apply(geom.Vec3{})
	added := p.store.Merge(kept, origin)
	if added == 0 {
		return 0, nil
	}

	dirty := p.store.DirtySnapshot()
	p.engine.RecomputeDirty()
	p.publishDirty(dirty)

	return added, nil
}

func nearAny(p geom.Vec3, others []geom.Vec3, r float64) bool {
	r2 := r * r
	for _, o := range others {
		if geom.SqDist(p, o) <= r2 {
			return true
		}
	}
	return false
}

func (p *Pipeline) validate(c *Cloud) error {
	if c == nil {
		return ErrBadCloud
	}
	if time.Since(c.Stamp) > p.params.MaxCloudAge {
		return ErrBadCloud
	}
	if c.PointStep == 0 || c.RowStep != c.PointStep*c.Width {
		return ErrBadCloud
	}
	if _, ok := c.field(p.params.PositionName); !ok {
		return ErrBadCloud
	}
	if _, ok := c.field(p.params.NormalName); !ok {
		return ErrBadCloud
	}
	return nil
}

// publishDirty serializes the indices that were dirty right after this
// merge (captured before the feature engine drained and cleared them) and
// publishes them as the dirty-cloud topic (spec §4.8 step 6,
// create_dirty_cloud from §4.2).
func (p *Pipeline) publishDirty(indices []datastructure.Index) {
	if p.pub == nil || len(indices) == 0 {
		return
	}

	var buf []byte
	w := &byteSink{buf: &buf}
	if err := wire.WriteCloud(w, p.store, indices); err != nil {
		p.log.Warn("ingest: failed to serialize dirty cloud", zap.Error(err))
		return
	}
	p.pub.Publish("dirty", buf)
}

type byteSink struct{ buf *[]byte }

func (b *byteSink) Write(p []byte) (int, error) {
	*b.buf = append(*b.buf, p...)
	return len(p), nil
}
