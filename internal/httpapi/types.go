package httpapi

import (
	"time"

	"github.com/signalsfoundry/debris-risk/internal/riskapi"
	"github.com/signalsfoundry/debris-risk/model"
)

// ParametersRequest is the JSON form of a parameter set. Every field is
// required; pointers distinguish an explicit zero from an omitted field.
type ParametersRequest struct {
	SpatialDensity          *float64 `json:"spatial_density" binding:"required,gte=0"`
	RelativeVelocity        *float64 `json:"relative_velocity" binding:"required,gte=0"`
	CrossSectionalArea      *float64 `json:"cross_sectional_area" binding:"required,gte=0"`
	MissionDuration         *float64 `json:"mission_duration" binding:"required,gte=0"`
	OrbitalAltitude         *float64 `json:"orbital_altitude" binding:"required,gte=0"`
	OrbitalInclination      *float64 `json:"orbital_inclination" binding:"required"`
	DebrisSize              *float64 `json:"debris_size" binding:"required,gte=0"`
	DebrisMass              *float64 `json:"debris_mass" binding:"required,gte=0"`
	DebrisVelocity          *float64 `json:"debris_velocity" binding:"required,gte=0"`
	ManeuverCapability      *float64 `json:"maneuver_capability" binding:"required"`
	StructuralVulnerability *float64 `json:"structural_vulnerability" binding:"required"`
}

// ParameterSet converts a bound request. Call only after binding succeeded.
func (r ParametersRequest) ParameterSet() model.ParameterSet {
	return model.ParameterSet{
		SpatialDensity:          *r.SpatialDensity,
		RelativeVelocity:        *r.RelativeVelocity,
		CrossSectionalArea:      *r.CrossSectionalArea,
		MissionDuration:         *r.MissionDuration,
		OrbitalAltitude:         *r.OrbitalAltitude,
		OrbitalInclination:      *r.OrbitalInclination,
		DebrisSize:              *r.DebrisSize,
		DebrisMass:              *r.DebrisMass,
		DebrisVelocity:          *r.DebrisVelocity,
		ManeuverCapability:      *r.ManeuverCapability,
		StructuralVulnerability: *r.StructuralVulnerability,
	}
}

// CreateProfileRequest registers a new profile.
type CreateProfileRequest struct {
	ID         string            `json:"id" binding:"required"`
	Name       string            `json:"name"`
	NoradID    uint32            `json:"norad_id"`
	TLELine1   string            `json:"tle_line1" binding:"required_with=TLELine2"`
	TLELine2   string            `json:"tle_line2" binding:"required_with=TLELine1"`
	Parameters ParametersRequest `json:"parameters"`
}

// OrbitRequest asks for a TLE to be propagated. At defaults to now.
type OrbitRequest struct {
	TLELine1 string     `json:"tle_line1" binding:"required"`
	TLELine2 string     `json:"tle_line2" binding:"required"`
	At       *time.Time `json:"at"`
}

// AssessResponse is returned by POST /api/v1/assess.
type AssessResponse struct {
	Assessment model.RiskAssessment `json:"assessment"`
	// Breakdown is omitted when an intermediate term overflowed.
	Breakdown *model.Breakdown `json:"breakdown,omitempty"`
}

// DefaultsResponse is returned by GET /api/v1/defaults.
type DefaultsResponse struct {
	Parameters model.ParameterSet `json:"parameters"`
	FieldNames []string           `json:"field_names"`
}

// ProfilesResponse is returned by GET /api/v1/profiles.
type ProfilesResponse struct {
	Profiles []riskapi.ProfileSummary `json:"profiles"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}
