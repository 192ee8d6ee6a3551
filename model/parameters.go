package model

import (
	"errors"
	"fmt"
	"math"
)

// SecondsPerYear is the mission-duration unit used for display (365 days).
const SecondsPerYear = 31536000.0

// ErrInvalidParameters indicates a ParameterSet failed boundary validation.
var ErrInvalidParameters = errors.New("invalid parameters")

// ParameterSet is the immutable input to the risk model. Values are plain
// float64s; units are noted per field.
type ParameterSet struct {
	SpatialDensity     float64 `json:"spatial_density" yaml:"spatial_density" toml:"spatial_density"`                // objects/km³
	RelativeVelocity   float64 `json:"relative_velocity" yaml:"relative_velocity" toml:"relative_velocity"`          // km/s
	CrossSectionalArea float64 `json:"cross_sectional_area" yaml:"cross_sectional_area" toml:"cross_sectional_area"` // m² (see core.ComputeProbability)
	MissionDuration    float64 `json:"mission_duration" yaml:"mission_duration" toml:"mission_duration"`             // seconds
	OrbitalAltitude    float64 `json:"orbital_altitude" yaml:"orbital_altitude" toml:"orbital_altitude"`             // km
	OrbitalInclination float64 `json:"orbital_inclination" yaml:"orbital_inclination" toml:"orbital_inclination"`    // degrees
	DebrisSize         float64 `json:"debris_size" yaml:"debris_size" toml:"debris_size"`                            // cm

	// DebrisMass and DebrisVelocity are reserved. They are accepted and
	// carried through every surface but the formula never reads them.
	DebrisMass     float64 `json:"debris_mass" yaml:"debris_mass" toml:"debris_mass"`             // kg
	DebrisVelocity float64 `json:"debris_velocity" yaml:"debris_velocity" toml:"debris_velocity"` // km/s

	ManeuverCapability      float64 `json:"maneuver_capability" yaml:"maneuver_capability" toml:"maneuver_capability"`                // [0,1]
	StructuralVulnerability float64 `json:"structural_vulnerability" yaml:"structural_vulnerability" toml:"structural_vulnerability"` // [0,1]
}

// DefaultParameters returns the parameter set used before any user input:
// a small satellite in an ISS-like orbit for one year.
func DefaultParameters() ParameterSet {
	return ParameterSet{
		SpatialDensity:          0.001,
		RelativeVelocity:        10,
		CrossSectionalArea:      5,
		MissionDuration:         SecondsPerYear,
		OrbitalAltitude:         400,
		OrbitalInclination:      51.6,
		DebrisSize:              1,
		DebrisMass:              0.1,
		DebrisVelocity:          8,
		ManeuverCapability:      0.8,
		StructuralVulnerability: 0.6,
	}
}

// Validate enforces the ranges the risk model assumes of its callers. The
// model itself never calls Validate; API and config boundaries do.
//
// Inclination is not range-checked, and the two unit-interval fields only
// need to be finite because the model clamps them.
func (p ParameterSet) Validate() error {
	for _, f := range p.fields() {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidParameters, f.name)
		}
		if f.nonNegative && f.value < 0 {
			return fmt.Errorf("%w: %s must be >= 0 (got %g)", ErrInvalidParameters, f.name, f.value)
		}
	}
	return nil
}

// Fields returns the parameter values keyed by their wire names.
func (p ParameterSet) Fields() map[string]float64 {
	out := make(map[string]float64, 11)
	for _, f := range p.fields() {
		out[f.name] = f.value
	}
	return out
}

// FieldNames lists every wire name in declaration order.
func FieldNames() []string {
	fs := ParameterSet{}.fields()
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.name
	}
	return names
}

// ParameterSetFromFields builds a ParameterSet from wire-named values. Every
// field is required, including the reserved ones.
func ParameterSetFromFields(values map[string]float64) (ParameterSet, error) {
	var p ParameterSet
	targets := map[string]*float64{
		"spatial_density":          &p.SpatialDensity,
		"relative_velocity":        &p.RelativeVelocity,
		"cross_sectional_area":     &p.CrossSectionalArea,
		"mission_duration":         &p.MissionDuration,
		"orbital_altitude":         &p.OrbitalAltitude,
		"orbital_inclination":      &p.OrbitalInclination,
		"debris_size":              &p.DebrisSize,
		"debris_mass":              &p.DebrisMass,
		"debris_velocity":          &p.DebrisVelocity,
		"maneuver_capability":      &p.ManeuverCapability,
		"structural_vulnerability": &p.StructuralVulnerability,
	}
	for _, name := range FieldNames() {
		v, ok := values[name]
		if !ok {
			return ParameterSet{}, fmt.Errorf("%w: %s is required", ErrInvalidParameters, name)
		}
		*targets[name] = v
	}
	for name := range values {
		if _, ok := targets[name]; !ok {
			return ParameterSet{}, fmt.Errorf("%w: unknown field %q", ErrInvalidParameters, name)
		}
	}
	return p, nil
}

type parameterField struct {
	name        string
	value       float64
	nonNegative bool
}

func (p ParameterSet) fields() []parameterField {
	return []parameterField{
		{"spatial_density", p.SpatialDensity, true},
		{"relative_velocity", p.RelativeVelocity, true},
		{"cross_sectional_area", p.CrossSectionalArea, true},
		{"mission_duration", p.MissionDuration, true},
		{"orbital_altitude", p.OrbitalAltitude, true},
		{"orbital_inclination", p.OrbitalInclination, false},
		{"debris_size", p.DebrisSize, true},
		{"debris_mass", p.DebrisMass, true},
		{"debris_velocity", p.DebrisVelocity, true},
		{"maneuver_capability", p.ManeuverCapability, false},
		{"structural_vulnerability", p.StructuralVulnerability, false},
	}
}
