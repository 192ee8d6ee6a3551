package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/signalsfoundry/debris-risk/core"
	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/internal/riskapi"
	"github.com/signalsfoundry/debris-risk/internal/state"
	"github.com/signalsfoundry/debris-risk/model"
)

// Handlers serves the REST surface of the risk service.
type Handlers struct {
	state *state.AssessmentState
	log   logging.Logger
	now   func() time.Time
}

// NewHandlers wires handlers to the shared AssessmentState.
func NewHandlers(st *state.AssessmentState, log logging.Logger) *Handlers {
	if log == nil {
		log = logging.Noop()
	}
	return &Handlers{state: st, log: log, now: time.Now}
}

// HandleAssess handles POST /api/v1/assess.
func (h *Handlers) HandleAssess(c *gin.Context) {
	var req ParametersRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	a, b, err := h.state.Evaluate(ctx, req.ParameterSet())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := AssessResponse{Assessment: a}
	if b.IsFinite() {
		resp.Breakdown = &b
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDefaults handles GET /api/v1/defaults.
func (h *Handlers) HandleDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, DefaultsResponse{
		Parameters: model.DefaultParameters(),
		FieldNames: model.FieldNames(),
	})
}

// HandleListProfiles handles GET /api/v1/profiles.
func (h *Handlers) HandleListProfiles(c *gin.Context) {
	assessments := make(map[string]model.RiskAssessment)
	for _, pa := range h.state.Assessments() {
		assessments[pa.ProfileID] = pa.Assessment
	}

	profiles := h.state.Catalog().ListProfiles()
	resp := ProfilesResponse{Profiles: make([]riskapi.ProfileSummary, 0, len(profiles))}
	for i := range profiles {
		p := &profiles[i]
		source := "manual"
		if p.OrbitSource() == model.OrbitSourceTLE {
			source = "tle"
		}
		resp.Profiles = append(resp.Profiles, riskapi.ProfileSummary{
			ID:          p.ID,
			Name:        p.Name,
			NoradID:     p.NoradID,
			OrbitSource: source,
			Assessment:  assessments[p.ID],
		})
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCreateProfile handles POST /api/v1/profiles.
func (h *Handlers) HandleCreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	p := model.Profile{
		ID:         strings.TrimSpace(req.ID),
		Name:       req.Name,
		NoradID:    req.NoradID,
		TLELine1:   req.TLELine1,
		TLELine2:   req.TLELine2,
		Parameters: req.Parameters.ParameterSet(),
	}
	if err := h.state.AddProfile(p); err != nil {
		writeError(c, err)
		return
	}
	logging.LoggerFromContext(c.Request.Context(), h.log).Info(c.Request.Context(), "profile created",
		logging.String("profile_id", p.ID),
	)
	h.respondProfile(c, http.StatusCreated, p.ID)
}

// HandleGetAssessment handles GET /api/v1/profiles/:id/assessment.
func (h *Handlers) HandleGetAssessment(c *gin.Context) {
	h.respondProfile(c, http.StatusOK, c.Param("id"))
}

// HandleUpdateParameters handles PUT /api/v1/profiles/:id/parameters.
func (h *Handlers) HandleUpdateParameters(c *gin.Context) {
	var req ParametersRequest
	if !bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	pa, err := h.state.UpdateParameters(id, req.ParameterSet())
	if err != nil {
		writeError(c, err)
		return
	}
	logging.LoggerFromContext(c.Request.Context(), h.log).Info(c.Request.Context(), "profile parameters updated",
		logging.String("profile_id", id),
		logging.String("tier", string(pa.Assessment.Tier)),
	)
	c.JSON(http.StatusOK, profileResult(pa))
}

// HandleDeleteProfile handles DELETE /api/v1/profiles/:id.
func (h *Handlers) HandleDeleteProfile(c *gin.Context) {
	if err := h.state.DeleteProfile(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleOrbit handles POST /api/v1/orbit.
func (h *Handlers) HandleOrbit(c *gin.Context) {
	var req OrbitRequest
	if !bindJSON(c, &req) {
		return
	}
	at := h.now()
	if req.At != nil {
		at = *req.At
	}
	orbit, err := core.OrbitFromTLE(req.TLELine1, req.TLELine2, at)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, riskapi.OrbitResultFrom(orbit))
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"profiles": h.state.Catalog().Len(),
	})
}

func (h *Handlers) respondProfile(c *gin.Context, code int, id string) {
	pa, err := h.state.Assessment(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(code, profileResult(pa))
}

func profileResult(pa state.ProfileAssessment) riskapi.ProfileResult {
	res := riskapi.ProfileResult{
		ProfileID:  pa.ProfileID,
		Revision:   pa.Revision,
		Parameters: pa.Parameters,
		Assessment: pa.Assessment,
	}
	if pa.Orbit != nil {
		o := riskapi.OrbitResultFrom(*pa.Orbit)
		res.Orbit = &o
	}
	return res
}

// bindJSON binds and validates the request body, writing a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		resp := ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				resp.Details = append(resp.Details, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			resp.Details = []string{err.Error()}
		}
		logging.LoggerFromContext(c.Request.Context(), nil).Warn(c.Request.Context(), "invalid request body", logging.Err(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	code, errCode := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, state.ErrProfileNotFound):
		code, errCode = http.StatusNotFound, "PROFILE_NOT_FOUND"
	case errors.Is(err, state.ErrProfileExists):
		code, errCode = http.StatusConflict, "PROFILE_EXISTS"
	case errors.Is(err, state.ErrInvalidParameters):
		code, errCode = http.StatusBadRequest, "INVALID_PARAMETERS"
	case errors.Is(err, state.ErrInvalidProfile):
		code, errCode = http.StatusBadRequest, "INVALID_PROFILE"
	case errors.Is(err, state.ErrInvalidTLE):
		code, errCode = http.StatusBadRequest, "INVALID_TLE"
	case errors.Is(err, state.ErrOverflow):
		code, errCode = http.StatusUnprocessableEntity, "OVERFLOW"
	case errors.Is(err, state.ErrAssessmentPending):
		code, errCode = http.StatusServiceUnavailable, "ASSESSMENT_PENDING"
	}
	if code >= http.StatusInternalServerError {
		logging.LoggerFromContext(c.Request.Context(), nil).Error(c.Request.Context(), "request failed", logging.Err(err))
	}
	c.AbortWithStatusJSON(code, ErrorResponse{Error: err.Error(), Code: errCode})
}
