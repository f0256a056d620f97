// Package config loads the planner's parameters the way the teacher loads
// its own (pkg/util.ReadConfig plus the viper.SetDefault calls in
// pkg/http.Server.Use): viper reads an optional file, every parameter in
// spec §6 gets a hard default, and the subset spec §6 calls
// hot-reloadable lives behind Live so the feature engine always reads the
// latest values without taking the point-store lock.
package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Params holds every configuration value enumerated in spec §6.
type Params struct {
	PositionName string
	NormalName   string
	MapFrame     string
	RobotFrame   string
	RobotFrames  map[string]string

	MaxCloudAge time.Duration
	MaxPitchDeg float64
	MaxRollDeg  float64

	EmptyRatio   float64
	FilterRobots bool

	NeighborhoodKNN    int
	NeighborhoodRadius float64
	MaxNNHeightDiff    float64

	MinNormalPts int
	NormalRadius float64

	PointsMinDist float64
	MinEmptyCos   float64

	ViewpointsUpdateFreq float64
	MinVpDistance        float64
	MaxVpDistance        float64
	SelfFactor           float64

	PlanningFreq   float64
	NumInputClouds int
	InputQueueSize int
	RandomStart    bool

	Live LiveParams
}

// LiveParams is the hot-reloadable subset (spec §6): parameters used only
// inside planning/labeling, never consulted while deciding point-store
// layout or graph structure, so swapping them never invalidates an
// in-flight Dijkstra run or violates the point-store's append-only
// invariant.
type LiveParams struct {
	ClearanceRadius       float64
	ClearanceLow          float64
	ClearanceHigh         float64
	MinPointsObstacle     int
	MaxGroundDiffStd      float64
	MaxMeanAbsGroundDiff  float64
	EdgeMinCentroidOffset float64
	MinDistToObstacle     float64
}

// Live is an atomically-swappable snapshot of LiveParams. The (out-of-scope)
// reload watcher calls Store; the feature engine calls Load.
type Live struct {
	p atomic.Pointer[LiveParams]
}

func NewLive(initial LiveParams) *Live {
	l := &Live{}
	l.Store(initial)
	return l
}

func (l *Live) Load() LiveParams {
	return *l.p.Load()
}

func (l *Live) Store(p LiveParams) {
	cp := p
	l.p.Store(&cp)
}

// Load reads parameters via viper: defaults first (matching spec §6),
// then an optional ./data/config.(yaml|json|...) file, then environment.
func Load() (*Params, error) {
	viper.SetDefault("position_name", "x")
	viper.SetDefault("normal_name", "normal_x")
	viper.SetDefault("map_frame", "")
	viper.SetDefault("robot_frame", "base_footprint")

	viper.SetDefault("max_cloud_age_seconds", 5.0)
	viper.SetDefault("max_pitch_deg", 30.0)
	viper.SetDefault("max_roll_deg", 30.0)

	viper.SetDefault("empty_ratio", 2.0)
	viper.SetDefault("filter_robots", false)

	viper.SetDefault("neighborhood_knn", 12)
	viper.SetDefault("neighborhood_radius", 0.5)
	viper.SetDefault("max_nn_height_diff", 0.3)

	viper.SetDefault("min_normal_pts", 9)
	viper.SetDefault("normal_radius", 0.5)

	viper.SetDefault("points_min_dist", 0.1)
	viper.SetDefault("min_empty_cos", 0.98)

	viper.SetDefault("clearance_radius", 0.3)
	viper.SetDefault("clearance_low", 0.15)
	viper.SetDefault("clearance_high", 0.8)
	viper.SetDefault("min_points_obstacle", 3)
	viper.SetDefault("max_ground_diff_std", 0.1)
	viper.SetDefault("max_mean_abs_ground_diff", 0.1)
	viper.SetDefault("edge_min_centroid_offset", 0.75)
	viper.SetDefault("min_dist_to_obstacle", 0.7)

	viper.SetDefault("viewpoints_update_freq", 1.0)
	viper.SetDefault("min_vp_distance", 1.5)
	viper.SetDefault("max_vp_distance", 5.0)
	viper.SetDefault("self_factor", 0.25)

	viper.SetDefault("planning_freq", 0.5)
	viper.SetDefault("num_input_clouds", 1)
	viper.SetDefault("input_queue_size", 5)
	viper.SetDefault("random_start", false)

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	robotFrames := viper.GetStringMapString("robot_frames")
	if robotFrames == nil {
		robotFrames = map[string]string{}
	}

	p := &Params{
		PositionName: viper.GetString("position_name"),
		NormalName:   viper.GetString("normal_name"),
		MapFrame:     viper.GetString("map_frame"),
		RobotFrame:   viper.GetString("robot_frame"),
		RobotFrames:  robotFrames,

		MaxCloudAge: time.Duration(viper.GetFloat64("max_cloud_age_seconds") * float64(time.Second)),
		MaxPitchDeg: viper.GetFloat64("max_pitch_deg"),
		MaxRollDeg:  viper.GetFloat64("max_roll_deg"),

		EmptyRatio:   viper.GetFloat64("empty_ratio"),
		FilterRobots: viper.GetBool("filter_robots"),

		NeighborhoodKNN:    viper.GetInt("neighborhood_knn"),
		NeighborhoodRadius: viper.GetFloat64("neighborhood_radius"),
		MaxNNHeightDiff:    viper.GetFloat64("max_nn_height_diff"),

		MinNormalPts: viper.GetInt("min_normal_pts"),
		NormalRadius: viper.GetFloat64("normal_radius"),

		PointsMinDist: viper.GetFloat64("points_min_dist"),
		MinEmptyCos:   viper.GetFloat64("min_empty_cos"),

		ViewpointsUpdateFreq: viper.GetFloat64("viewpoints_update_freq"),
		MinVpDistance:        viper.GetFloat64("min_vp_distance"),
		MaxVpDistance:        viper.GetFloat64("max_vp_distance"),
		SelfFactor:           viper.GetFloat64("self_factor"),

		PlanningFreq:   viper.GetFloat64("planning_freq"),
		NumInputClouds: viper.GetInt("num_input_clouds"),
		InputQueueSize: viper.GetInt("input_queue_size"),
		RandomStart:    viper.GetBool("random_start"),
	}

	p.Live = LiveParams{
		ClearanceRadius:       viper.GetFloat64("clearance_radius"),
		ClearanceLow:          viper.GetFloat64("clearance_low"),
		ClearanceHigh:         viper.GetFloat64("clearance_high"),
		MinPointsObstacle:     viper.GetInt("min_points_obstacle"),
		MaxGroundDiffStd:      viper.GetFloat64("max_ground_diff_std"),
		MaxMeanAbsGroundDiff:  viper.GetFloat64("max_mean_abs_ground_diff"),
		EdgeMinCentroidOffset: viper.GetFloat64("edge_min_centroid_offset"),
		MinDistToObstacle:     viper.GetFloat64("min_dist_to_obstacle"),
	}

	return p, nil
}
