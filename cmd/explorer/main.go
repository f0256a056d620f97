// Command explorer wires together the point store, spatial index, feature
// engine, viewpoint ledger, ingestion pipeline, planner and HTTP boundary
// into one running process, following the teacher's activity-supervisor
// shape (pkg/http.Server.Use's errgroup over concurrent server loops).
package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldcortex/terrane/pkg/config"
	"github.com/fieldcortex/terrane/pkg/datastructure"
	"github.com/fieldcortex/terrane/pkg/features"
	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/httpx"
	"github.com/fieldcortex/terrane/pkg/ingest"
	"github.com/fieldcortex/terrane/pkg/planner"
	"github.com/fieldcortex/terrane/pkg/spatialindex"
	"github.com/fieldcortex/terrane/pkg/transform"
	"github.com/fieldcortex/terrane/pkg/viewpoint"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// discoveryWindow bounds how long startup waits for teammate transforms
// before continuing with whichever are available (spec §4.8).
const discoveryWindow = 10 * time.Second

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	params, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	live := config.NewLive(params.Live)

	index := spatialindex.NewIndex()
	store := datastructure.NewPointStore(index, params.PointsMinDist, params.NeighborhoodRadius, params.MinEmptyCos)

	engine := features.NewEngine(store, live, params.NeighborhoodRadius, params.NeighborhoodKNN,
		params.MinNormalPts, params.MaxPitchDeg, params.MaxRollDeg, log)

	src := transform.NewStatic()

	ledger := viewpoint.NewLedger(store, src, params.MapFrame, params.RobotFrame, params.RobotFrames,
		params.MaxVpDistance, params.MaxCloudAge, log)

	hub := httpx.NewHub(log)

	teammatePositions := func() []geom.Vec3 {
		positions := make([]geom.Vec3, 0)
		for _, p := range ledger.RecentPoses() {
			if p.Actor == "self" {
				continue
			}
			positions = append(positions, p.Position)
		}
		return positions
	}
	pipeline := ingest.NewPipeline(store, engine, src, params, hub, teammatePositions, log)

	plnr := planner.New(store, params, src, planner.StagingBox{}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	discoverTeammates(ctx, src, params, log)
	plnr.MarkInitialized()

	server := httpx.NewServer(httpx.DefaultConfig(), plnr, hub, log)

	group, gctx := errgroup.WithContext(ctx)

	pipeline.Start(gctx)

	group.Go(func() error {
		return runViewpointSampler(gctx, ledger, params)
	})
	group.Go(func() error {
		return runPeriodicPlanner(gctx, plnr, params, log)
	})
	group.Go(func() error {
		return server.ListenAndServe()
	})

	<-gctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	pipeline.Stop()

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		log.Error("explorer: activity supervisor exited with error", zap.Error(err))
	}
}

// discoverTeammates performs the bounded-timeout teammate-frame discovery
// from spec §4.8: best-effort lookups, warnings on timeout, never fatal.
func discoverTeammates(ctx context.Context, src transform.Source, params *config.Params, log *zap.Logger) {
	discoveryCtx, cancel := context.WithTimeout(ctx, discoveryWindow)
	defer cancel()

	for name, frame := range params.RobotFrames {
		if _, err := src.Lookup(discoveryCtx, params.MapFrame, frame, time.Now(), discoveryWindow); err != nil {
			log.Warn("explorer: teammate frame unavailable at startup", zap.String("teammate", name), zap.Error(err))
		}
	}
}

func runViewpointSampler(ctx context.Context, ledger *viewpoint.Ledger, params *config.Params) error {
	limiter := rate.NewLimiter(rate.Limit(params.ViewpointsUpdateFreq), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		ledger.Tick(ctx, time.Now())
	}
}

// exploreRequest asks the planner to resolve its own start pose and pick
// an exploration goal (spec §6: NaN-triplet position means "use self" /
// "explore").
func exploreRequest(tolerance float64) planner.Request {
	nanPos := geom.Vec3{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	return planner.Request{
		Start:     planner.Pose{Position: nanPos},
		Goal:      planner.Pose{Position: nanPos},
		Tolerance: tolerance,
	}
}

func runPeriodicPlanner(ctx context.Context, plnr *planner.Planner, params *config.Params, log *zap.Logger) error {
	limiter := rate.NewLimiter(rate.Limit(params.PlanningFreq), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		if _, err := plnr.Plan(ctx, exploreRequest(params.NeighborhoodRadius)); err != nil {
			log.Debug("explorer: periodic plan did not produce a path", zap.Error(err))
		}
	}
}
