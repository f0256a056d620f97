package httpx

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/fieldcortex/terrane/pkg/geom"
	"github.com/fieldcortex/terrane/pkg/planner"
	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// poseDTO is the wire shape of a pose: NaN-triplet position means "use
// self" (start) or "explore" (goal), per spec §6.
type poseDTO struct {
	X, Y, Z       float64
	QW, QX, QY, QZ float64
}

func (d poseDTO) toPose() planner.Pose {
	return planner.Pose{
		Position:    geom.Vec3{X: d.X, Y: d.Y, Z: d.Z},
		Orientation: geom.Quat{W: d.QW, X: d.QX, Y: d.QY, Z: d.QZ},
	}
}

func fromPose(p planner.Pose) poseDTO {
	return poseDTO{
		X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z,
		QW: p.Orientation.W, QX: p.Orientation.X, QY: p.Orientation.Y, QZ: p.Orientation.Z,
	}
}

// planRequestDTO is the Plan RPC request body (spec §6).
type planRequestDTO struct {
	StartPose poseDTO `json:"start_pose"`
	GoalPose  poseDTO `json:"goal_pose"`
	Tolerance float64 `json:"tolerance" validate:"gte=0"`
}

type planResponseDTO struct {
	Poses []poseDTO `json:"poses"`
}

type envelope map[string]any

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req planRequestDTO
	req.GoalPose = poseDTO{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	req.StartPose = poseDTO{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequestResponse(w, err)
		return
	}
	if err := s.valid.Struct(req); err != nil {
		s.validationErrorResponse(w, err)
		return
	}

	poses, err := s.planr.Plan(r.Context(), planner.Request{
		Start:     req.StartPose.toPose(),
		Goal:      req.GoalPose.toPose(),
		Tolerance: req.Tolerance,
	})
	if err != nil {
		s.planErrorResponse(w, err)
		return
	}

	out := make([]poseDTO, len(poses))
	for i, p := range poses {
		out[i] = fromPose(p)
	}
	s.writeJSON(w, http.StatusOK, envelope{"data": planResponseDTO{Poses: out}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("httpx: failed to write response", zap.Error(err))
	}
}

func (s *Server) badRequestResponse(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, envelope{"error": err.Error()})
}

// validationErrorResponse translates go-playground/validator field errors
// into human-readable messages via the registered en translator.
func (s *Server) validationErrorResponse(w http.ResponseWriter, err error) {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		s.badRequestResponse(w, err)
		return
	}
	messages := make([]string, len(verrs))
	for i, fe := range verrs {
		messages[i] = fe.Translate(s.trans)
	}
	s.writeJSON(w, http.StatusBadRequest, envelope{"error": messages})
}

// planErrorResponse maps the planner's error kinds (spec §7) onto HTTP
// status codes; the kind itself is logged, since "planning errors surface
// to the RPC caller and are logged".
func (s *Server) planErrorResponse(w http.ResponseWriter, err error) {
	s.log.Warn("httpx: plan request failed", zap.Error(err))

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, planner.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, planner.ErrMapTooSmall),
		errors.Is(err, planner.ErrNoStart),
		errors.Is(err, planner.ErrNoPath),
		errors.Is(err, planner.ErrNoGoal):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, planner.ErrTransformUnavailable):
		status = http.StatusGatewayTimeout
	}
	s.writeJSON(w, status, envelope{"error": err.Error()})
}
