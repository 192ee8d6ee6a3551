package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/debris-risk/model"
)

// quietParams keeps every modifier at exactly 1 so the percentage equals
// base × 100 and stays well below the cap.
func quietParams(density float64) model.ParameterSet {
	return model.ParameterSet{
		SpatialDensity:     density,
		RelativeVelocity:   10,
		CrossSectionalArea: 5,
		MissionDuration:    model.SecondsPerYear,
		OrbitalAltitude:    800,
		OrbitalInclination: 28.5,
		DebrisSize:         0,
	}
}

func TestClampUnitInterval(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-5, 0},
		{-0.0001, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.0001, 1},
		{5, 1},
	}
	for _, tc := range cases {
		if got := ClampUnitInterval(tc.in); got != tc.want {
			t.Errorf("ClampUnitInterval(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClassifyTierBoundaries(t *testing.T) {
	cases := []struct {
		percent float64
		want    model.RiskTier
	}{
		{0, model.TierLow},
		{0.999, model.TierLow},
		{1.0, model.TierModerate},
		{4.999, model.TierModerate},
		{5.0, model.TierHigh},
		{14.999, model.TierHigh},
		{15.0, model.TierCritical},
		{100, model.TierCritical},
	}
	for _, tc := range cases {
		if got := ClassifyTier(tc.percent); got != tc.want {
			t.Errorf("ClassifyTier(%v) = %s, want %s", tc.percent, got, tc.want)
		}
	}
}

func TestClassifyRegimeBoundaries(t *testing.T) {
	cases := []struct {
		altitude float64
		want     model.OrbitalRegime
	}{
		{-10, model.RegimeLEO},
		{0, model.RegimeLEO},
		{599.999, model.RegimeLEO},
		{600, model.RegimeMEO},
		{19999.999, model.RegimeMEO},
		{20000, model.RegimeGEO},
		{35786, model.RegimeGEO},
	}
	for _, tc := range cases {
		if got := ClassifyRegime(tc.altitude); got != tc.want {
			t.Errorf("ClassifyRegime(%v) = %s, want %s", tc.altitude, got, tc.want)
		}
	}
}

func TestClassifyDebrisEnvironment(t *testing.T) {
	cases := []struct {
		density float64
		want    model.DebrisEnvironment
	}{
		{0, model.EnvironmentSparse},
		{0.001, model.EnvironmentSparse},
		{0.0011, model.EnvironmentModerate},
		{0.01, model.EnvironmentModerate},
		{0.0101, model.EnvironmentDense},
		{1, model.EnvironmentDense},
	}
	for _, tc := range cases {
		if got := ClassifyDebrisEnvironment(tc.density); got != tc.want {
			t.Errorf("ClassifyDebrisEnvironment(%v) = %s, want %s", tc.density, got, tc.want)
		}
	}
}

func TestAssessDefaultsGolden(t *testing.T) {
	// base = 0.001 × 10 × 5 × 31536000 = 1576800, far above the cap.
	got := Assess(model.DefaultParameters())
	want := model.RiskAssessment{
		ProbabilityPercent: 100,
		Tier:               model.TierCritical,
		OrbitalRegime:      model.RegimeLEO,
		DebrisEnvironment:  model.EnvironmentSparse,
		MissionYears:       1,
	}
	if got != want {
		t.Fatalf("Assess(defaults) = %+v, want %+v", got, want)
	}
}

func TestDefaultsBreakdown(t *testing.T) {
	b := Modifiers(model.DefaultParameters())

	if b.Base != 1576800 {
		t.Fatalf("Base = %v, want 1576800", b.Base)
	}
	approx := []struct {
		name      string
		got, want float64
	}{
		{"altitude", b.AltitudeModifier, 1 + (200.0/600.0)*0.5},
		{"inclination", b.InclinationModifier, 1.077},
		{"size", b.SizeModifier, 1 + math.Log10(2)},
		{"maneuver", b.ManeuverModifier, 0.44},
		{"vulnerability", b.VulnerabilityModifier, 1.6},
		{"adjusted", b.Adjusted, 1814675.905212028},
	}
	for _, a := range approx {
		if math.Abs(a.got-a.want) > 1e-9*math.Max(1, math.Abs(a.want)) {
			t.Errorf("%s modifier = %v, want %v", a.name, a.got, a.want)
		}
	}
}

func TestComputeProbabilityUncappedGolden(t *testing.T) {
	cases := []struct {
		density float64
		want    float64
		tier    model.RiskTier
	}{
		{1e-12, 0.15768, model.TierLow},
		{1e-11, 1.5767999999999998, model.TierModerate},
		{1e-10, 15.768, model.TierCritical},
	}
	for _, tc := range cases {
		got := Assess(quietParams(tc.density))
		if got.ProbabilityPercent != tc.want {
			t.Errorf("density %g: probability = %v, want %v", tc.density, got.ProbabilityPercent, tc.want)
		}
		if got.Tier != tc.tier {
			t.Errorf("density %g: tier = %s, want %s", tc.density, got.Tier, tc.tier)
		}
	}
}

func TestComputeProbabilityCapsAt100(t *testing.T) {
	p := model.ParameterSet{
		SpatialDensity:     1,
		RelativeVelocity:   100,
		CrossSectionalArea: 100,
		MissionDuration:    model.SecondsPerYear,
		OrbitalAltitude:    400,
		OrbitalInclination: 51.6,
		DebrisSize:         1,
	}
	if got := ComputeProbability(p); got != 100 {
		t.Fatalf("ComputeProbability = %v, want 100", got)
	}
}

func TestAssessClampsUnitInterval(t *testing.T) {
	base := quietParams(1e-12)

	hi := base
	hi.ManeuverCapability = 5
	one := base
	one.ManeuverCapability = 1
	if Assess(hi) != Assess(one) {
		t.Errorf("maneuverCapability 5 should assess like 1")
	}

	lo := base
	lo.StructuralVulnerability = -3
	zero := base
	zero.StructuralVulnerability = 0
	if Assess(lo) != Assess(zero) {
		t.Errorf("structuralVulnerability -3 should assess like 0")
	}

	over := base
	over.StructuralVulnerability = 2
	full := base
	full.StructuralVulnerability = 1
	if Assess(over) != Assess(full) {
		t.Errorf("structuralVulnerability 2 should assess like 1")
	}
}

func TestManeuverCapabilityNeverIncreasesRisk(t *testing.T) {
	p := quietParams(1e-12)
	prev := math.Inf(1)
	for i := 0; i <= 20; i++ {
		p.ManeuverCapability = float64(i) / 20
		got := Assess(p).ProbabilityPercent
		if got > prev {
			t.Fatalf("maneuverCapability %v raised probability %v -> %v", p.ManeuverCapability, prev, got)
		}
		prev = got
	}
}

func TestVulnerabilityNeverDecreasesRisk(t *testing.T) {
	p := quietParams(1e-12)
	prev := math.Inf(-1)
	for i := 0; i <= 20; i++ {
		p.StructuralVulnerability = float64(i) / 20
		got := Assess(p).ProbabilityPercent
		if got < prev {
			t.Fatalf("structuralVulnerability %v lowered probability %v -> %v", p.StructuralVulnerability, prev, got)
		}
		prev = got
	}
}

func TestLowerAltitudeNeverDecreasesRisk(t *testing.T) {
	p := quietParams(1e-12)
	prev := math.Inf(-1)
	for alt := 600.0; alt >= 0; alt -= 25 {
		p.OrbitalAltitude = alt
		got := Assess(p).ProbabilityPercent
		if got < prev {
			t.Fatalf("altitude %v lowered probability %v -> %v", alt, prev, got)
		}
		prev = got
	}
}

func TestAltitudeAbove600HasNoEffect(t *testing.T) {
	p := quietParams(1e-12)
	p.OrbitalAltitude = 600
	at600 := ComputeProbability(p)
	p.OrbitalAltitude = 36000
	if got := ComputeProbability(p); got != at600 {
		t.Fatalf("probability at 36000 km = %v, want %v", got, at600)
	}
}

func TestProbabilityWithinRangeForValidInputs(t *testing.T) {
	densities := []float64{0, 1e-12, 1e-9, 1e-6, 0.001, 0.5}
	altitudes := []float64{0, 300, 599, 600, 20000, 40000}
	sizes := []float64{0, 0.1, 1, 10, 1000}
	ratios := []float64{-1, 0, 0.5, 1, 3}

	for _, d := range densities {
		for _, alt := range altitudes {
			for _, s := range sizes {
				for _, r := range ratios {
					p := model.DefaultParameters()
					p.SpatialDensity = d
					p.OrbitalAltitude = alt
					p.DebrisSize = s
					p.ManeuverCapability = r
					p.StructuralVulnerability = r
					got := Assess(p).ProbabilityPercent
					if got < 0 || got > 100 || math.IsNaN(got) {
						t.Fatalf("probability %v out of range for %+v", got, p)
					}
				}
			}
		}
	}
}

func TestReservedFieldsAreIgnored(t *testing.T) {
	p := quietParams(1e-11)
	want := Assess(p)

	p.DebrisMass = 1e6
	p.DebrisVelocity = 42
	if got := Assess(p); got != want {
		t.Fatalf("reserved fields changed the assessment: %+v vs %+v", got, want)
	}
}

func TestNegativeInputIsNotClampedBelowZero(t *testing.T) {
	// Out of contract for the model; the API boundary rejects this.
	p := quietParams(-1e-12)
	if got := ComputeProbability(p); got >= 0 {
		t.Fatalf("ComputeProbability(negative density) = %v, want negative passthrough", got)
	}
}

func TestDebrisSizeAtOrBelowMinusOneIsNonFinite(t *testing.T) {
	for _, size := range []float64{-1, -2, -100} {
		p := quietParams(1e-12)
		p.DebrisSize = size
		got := ComputeProbability(p)
		if !math.IsNaN(got) && !math.IsInf(got, 0) {
			t.Errorf("debrisSize %v: probability %v, want non-finite", size, got)
		}
	}
}

func TestAssessIsDeterministic(t *testing.T) {
	p := model.DefaultParameters()
	p.SpatialDensity = 3.3e-11
	p.OrbitalInclination = 97.4
	p.DebrisSize = 2.5

	a := Assess(p)
	b := Assess(p)
	if math.Float64bits(a.ProbabilityPercent) != math.Float64bits(b.ProbabilityPercent) {
		t.Fatalf("probability not bit-identical: %v vs %v", a.ProbabilityPercent, b.ProbabilityPercent)
	}
	if a != b {
		t.Fatalf("assessments differ: %+v vs %+v", a, b)
	}
}

func TestAssessWithBreakdownMatchesAssess(t *testing.T) {
	p := model.DefaultParameters()
	p.SpatialDensity = 1e-11
	p.ManeuverCapability = 7

	a, b := AssessWithBreakdown(p)
	if a != Assess(p) {
		t.Fatalf("AssessWithBreakdown assessment differs from Assess")
	}
	if math.Abs(b.ManeuverModifier-0.3) > 1e-12 {
		t.Fatalf("breakdown should reflect the clamped maneuver capability, got %v", b.ManeuverModifier)
	}
	if got := math.Min(b.Adjusted*100, 100); got != a.ProbabilityPercent {
		t.Fatalf("breakdown adjusted %v does not reproduce probability %v", b.Adjusted, a.ProbabilityPercent)
	}
}
