package core

import (
	"math"

	"github.com/signalsfoundry/debris-risk/model"
)

// Regime and tier thresholds.
const (
	// MEOFloorKm is the lowest altitude classified as MEO.
	MEOFloorKm = 600.0
	// GEOFloorKm is the lowest altitude classified as GEO.
	GEOFloorKm = 20000.0

	denseDensity    = 0.01
	moderateDensity = 0.001

	moderateTierPercent = 1.0
	highTierPercent     = 5.0
	criticalTierPercent = 15.0
)

// Modifier constants of the probability formula.
const (
	altitudeReferenceKm    = 600.0
	altitudeWeight         = 0.5
	referenceInclination   = 28.5
	inclinationSpanDeg     = 90.0
	inclinationWeight      = 0.3
	maneuverReductionRatio = 0.7
)

// ClampUnitInterval restricts x to [0, 1].
func ClampUnitInterval(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// ClassifyRegime maps an altitude in km onto LEO, MEO or GEO. Negative
// altitudes fall into LEO.
func ClassifyRegime(altitudeKm float64) model.OrbitalRegime {
	switch {
	case altitudeKm < MEOFloorKm:
		return model.RegimeLEO
	case altitudeKm < GEOFloorKm:
		return model.RegimeMEO
	default:
		return model.RegimeGEO
	}
}

// ClassifyDebrisEnvironment buckets a spatial density in objects/km³.
func ClassifyDebrisEnvironment(spatialDensity float64) model.DebrisEnvironment {
	switch {
	case spatialDensity > denseDensity:
		return model.EnvironmentDense
	case spatialDensity > moderateDensity:
		return model.EnvironmentModerate
	default:
		return model.EnvironmentSparse
	}
}

// ClassifyTier buckets a probability percentage. Each tier includes its
// lower bound: exactly 1 is Moderate, 5 is High, 15 is Critical.
func ClassifyTier(percent float64) model.RiskTier {
	switch {
	case percent < moderateTierPercent:
		return model.TierLow
	case percent < highTierPercent:
		return model.TierModerate
	case percent < criticalTierPercent:
		return model.TierHigh
	default:
		return model.TierCritical
	}
}

// Modifiers evaluates every term of the probability formula for p without
// clamping any input.
func Modifiers(p model.ParameterSet) model.Breakdown {
	b := model.Breakdown{
		// Flux × cross-section × time. Area is taken in m² while the
		// classical form expects km²; the mixed units are kept so that
		// outputs stay comparable with earlier releases.
		Base:                  p.SpatialDensity * p.RelativeVelocity * p.CrossSectionalArea * p.MissionDuration,
		AltitudeModifier:      1 + (math.Max(0, altitudeReferenceKm-p.OrbitalAltitude)/altitudeReferenceKm)*altitudeWeight,
		InclinationModifier:   1 + (math.Abs(p.OrbitalInclination-referenceInclination)/inclinationSpanDeg)*inclinationWeight,
		SizeModifier:          math.Log10(p.DebrisSize+1) + 1,
		ManeuverModifier:      1 - p.ManeuverCapability*maneuverReductionRatio,
		VulnerabilityModifier: 1 + p.StructuralVulnerability,
	}
	b.Adjusted = b.Base * b.AltitudeModifier * b.InclinationModifier * b.SizeModifier * b.ManeuverModifier * b.VulnerabilityModifier
	return b
}

// ComputeProbability returns the collision probability in percent, capped
// at 100. There is no lower clamp. A DebrisSize at or below -1 yields a
// non-finite result; callers must not pass one.
func ComputeProbability(p model.ParameterSet) float64 {
	return percentOf(Modifiers(p))
}

// Assess clamps the unit-interval fields of p and returns the full
// assessment. It is pure and safe for concurrent use.
func Assess(p model.ParameterSet) model.RiskAssessment {
	a, _ := AssessWithBreakdown(p)
	return a
}

// AssessWithBreakdown is Assess plus the formula terms that produced it.
func AssessWithBreakdown(p model.ParameterSet) (model.RiskAssessment, model.Breakdown) {
	p.ManeuverCapability = ClampUnitInterval(p.ManeuverCapability)
	p.StructuralVulnerability = ClampUnitInterval(p.StructuralVulnerability)

	b := Modifiers(p)
	percent := percentOf(b)
	return model.RiskAssessment{
		ProbabilityPercent: percent,
		Tier:               ClassifyTier(percent),
		OrbitalRegime:      ClassifyRegime(p.OrbitalAltitude),
		DebrisEnvironment:  ClassifyDebrisEnvironment(p.SpatialDensity),
		MissionYears:       p.MissionDuration / model.SecondsPerYear,
	}, b
}

func percentOf(b model.Breakdown) float64 {
	return math.Min(b.Adjusted*100, 100)
}
