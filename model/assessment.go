package model

import "math"

// RiskTier is the qualitative bucket derived from a probability percentage.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierModerate RiskTier = "MODERATE"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// OrbitalRegime is the altitude band a satellite operates in.
type OrbitalRegime string

const (
	RegimeLEO OrbitalRegime = "LEO"
	RegimeMEO OrbitalRegime = "MEO"
	RegimeGEO OrbitalRegime = "GEO"
)

// DebrisEnvironment classifies the spatial density of debris.
type DebrisEnvironment string

const (
	EnvironmentSparse   DebrisEnvironment = "SPARSE"
	EnvironmentModerate DebrisEnvironment = "MODERATE"
	EnvironmentDense    DebrisEnvironment = "DENSE"
)

// RiskAssessment is the output of the risk model. It is derived entirely
// from a ParameterSet and carries no identity of its own.
type RiskAssessment struct {
	ProbabilityPercent float64           `json:"probability_percent" yaml:"probability_percent"`
	Tier               RiskTier          `json:"tier" yaml:"tier"`
	OrbitalRegime      OrbitalRegime     `json:"orbital_regime" yaml:"orbital_regime"`
	DebrisEnvironment  DebrisEnvironment `json:"debris_environment" yaml:"debris_environment"`
	MissionYears       float64           `json:"mission_years" yaml:"mission_years"`
}

// Breakdown exposes the intermediate terms of the probability formula.
type Breakdown struct {
	Base                  float64 `json:"base" yaml:"base"`
	AltitudeModifier      float64 `json:"altitude_modifier" yaml:"altitude_modifier"`
	InclinationModifier   float64 `json:"inclination_modifier" yaml:"inclination_modifier"`
	SizeModifier          float64 `json:"size_modifier" yaml:"size_modifier"`
	ManeuverModifier      float64 `json:"maneuver_modifier" yaml:"maneuver_modifier"`
	VulnerabilityModifier float64 `json:"vulnerability_modifier" yaml:"vulnerability_modifier"`
	Adjusted              float64 `json:"adjusted" yaml:"adjusted"`
}

// IsFinite reports whether the probability and mission length are finite.
// Finite inputs can still overflow the formula into NaN.
func (a RiskAssessment) IsFinite() bool {
	return isFinite(a.ProbabilityPercent) && isFinite(a.MissionYears)
}

// IsFinite reports whether every term is finite.
func (b Breakdown) IsFinite() bool {
	for _, v := range []float64{
		b.Base, b.AltitudeModifier, b.InclinationModifier, b.SizeModifier,
		b.ManeuverModifier, b.VulnerabilityModifier, b.Adjusted,
	} {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
