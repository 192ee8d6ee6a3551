package riskapi

import (
	"fmt"
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/debris-risk/core"
	"github.com/signalsfoundry/debris-risk/internal/state"
	"github.com/signalsfoundry/debris-risk/model"
)

// Message keys shared by the server and Client.
const (
	keyParameters = "parameters"
	keyAssessment = "assessment"
	keyBreakdown  = "breakdown"
	keyProfiles   = "profiles"
	keyProfileID  = "profile_id"
	keyRevision   = "revision"
	keyOrbit      = "orbit"
	keyTLELine1   = "tle_line1"
	keyTLELine2   = "tle_line2"
	keyAt         = "at"
)

// ProfileSummary is one entry of ListProfiles.
type ProfileSummary struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name,omitempty" yaml:"name,omitempty"`
	NoradID     uint32               `json:"norad_id,omitempty" yaml:"norad_id,omitempty"`
	OrbitSource string               `json:"orbit_source" yaml:"orbit_source"`
	Assessment  model.RiskAssessment `json:"assessment" yaml:"assessment"`
}

// ProfileResult is the latest assessment of one profile.
type ProfileResult struct {
	ProfileID  string               `json:"profile_id" yaml:"profile_id"`
	Revision   uint64               `json:"revision" yaml:"revision"`
	Parameters model.ParameterSet   `json:"parameters" yaml:"parameters"`
	Assessment model.RiskAssessment `json:"assessment" yaml:"assessment"`
	Orbit      *OrbitResult         `json:"orbit,omitempty" yaml:"orbit,omitempty"`
}

// OrbitResult is the wire form of a propagated orbit.
type OrbitResult struct {
	NoradID                  uint32              `json:"norad_id" yaml:"norad_id"`
	At                       time.Time           `json:"at" yaml:"at"`
	AltitudeKm               float64             `json:"altitude_km" yaml:"altitude_km"`
	InclinationDeg           float64             `json:"inclination_deg" yaml:"inclination_deg"`
	OsculatingInclinationDeg float64             `json:"osculating_inclination_deg" yaml:"osculating_inclination_deg"`
	Regime                   model.OrbitalRegime `json:"regime" yaml:"regime"`
}

// OrbitResultFrom converts a propagated orbit to its wire form.
func OrbitResultFrom(o core.OrbitState) OrbitResult {
	return OrbitResult{
		NoradID:                  o.NoradID,
		At:                       o.At,
		AltitudeKm:               o.AltitudeKm,
		InclinationDeg:           o.InclinationDeg,
		OsculatingInclinationDeg: o.OsculatingInclinationDeg,
		Regime:                   o.Regime,
	}
}

func numberStruct(values map[string]float64) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(values))
	for k, v := range values {
		fields[k] = structpb.NewNumberValue(v)
	}
	return &structpb.Struct{Fields: fields}
}

// ParametersToStruct encodes a parameter set keyed by wire field name.
func ParametersToStruct(p model.ParameterSet) *structpb.Struct {
	return numberStruct(p.Fields())
}

// ParametersFromStruct decodes a parameter set. Every field must be present
// and numeric, and the result must pass validation.
func ParametersFromStruct(s *structpb.Struct) (model.ParameterSet, error) {
	if s == nil {
		return model.ParameterSet{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, keyParameters)
	}
	values := make(map[string]float64, len(s.GetFields()))
	for name, v := range s.GetFields() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return model.ParameterSet{}, fmt.Errorf("%w: %s must be a number", model.ErrInvalidParameters, name)
		}
		values[name] = n.NumberValue
	}
	p, err := model.ParameterSetFromFields(values)
	if err != nil {
		return model.ParameterSet{}, err
	}
	if err := p.Validate(); err != nil {
		return model.ParameterSet{}, err
	}
	return p, nil
}

// AssessmentToStruct encodes an assessment.
func AssessmentToStruct(a model.RiskAssessment) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"probability_percent": structpb.NewNumberValue(a.ProbabilityPercent),
		"tier":                structpb.NewStringValue(string(a.Tier)),
		"orbital_regime":      structpb.NewStringValue(string(a.OrbitalRegime)),
		"debris_environment":  structpb.NewStringValue(string(a.DebrisEnvironment)),
		"mission_years":       structpb.NewNumberValue(a.MissionYears),
	}}
}

// AssessmentFromStruct decodes an assessment.
func AssessmentFromStruct(s *structpb.Struct) (model.RiskAssessment, error) {
	if s == nil {
		return model.RiskAssessment{}, fmt.Errorf("%w: %s is missing", ErrInvalidRequest, keyAssessment)
	}
	var a model.RiskAssessment
	var err error
	if a.ProbabilityPercent, err = numberField(s, "probability_percent"); err != nil {
		return model.RiskAssessment{}, err
	}
	if a.MissionYears, err = numberField(s, "mission_years"); err != nil {
		return model.RiskAssessment{}, err
	}
	a.Tier = model.RiskTier(stringField(s, "tier"))
	a.OrbitalRegime = model.OrbitalRegime(stringField(s, "orbital_regime"))
	a.DebrisEnvironment = model.DebrisEnvironment(stringField(s, "debris_environment"))
	return a, nil
}

// BreakdownToStruct encodes the intermediate factors of an assessment.
func BreakdownToStruct(b model.Breakdown) *structpb.Struct {
	return numberStruct(map[string]float64{
		"base":                   b.Base,
		"altitude_modifier":      b.AltitudeModifier,
		"inclination_modifier":   b.InclinationModifier,
		"size_modifier":          b.SizeModifier,
		"maneuver_modifier":      b.ManeuverModifier,
		"vulnerability_modifier": b.VulnerabilityModifier,
		"adjusted":               b.Adjusted,
	})
}

// BreakdownFromStruct decodes the intermediate factors of an assessment.
func BreakdownFromStruct(s *structpb.Struct) (model.Breakdown, error) {
	if s == nil {
		return model.Breakdown{}, fmt.Errorf("%w: %s is missing", ErrInvalidRequest, keyBreakdown)
	}
	var b model.Breakdown
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"base", &b.Base},
		{"altitude_modifier", &b.AltitudeModifier},
		{"inclination_modifier", &b.InclinationModifier},
		{"size_modifier", &b.SizeModifier},
		{"maneuver_modifier", &b.ManeuverModifier},
		{"vulnerability_modifier", &b.VulnerabilityModifier},
		{"adjusted", &b.Adjusted},
	} {
		v, err := numberField(s, f.name)
		if err != nil {
			return model.Breakdown{}, err
		}
		*f.dst = v
	}
	return b, nil
}

// OrbitToStruct encodes a propagated orbit.
func OrbitToStruct(o OrbitResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"norad_id":                   structpb.NewNumberValue(float64(o.NoradID)),
		"at":                         structpb.NewStringValue(o.At.UTC().Format(time.RFC3339Nano)),
		"altitude_km":                structpb.NewNumberValue(o.AltitudeKm),
		"inclination_deg":            structpb.NewNumberValue(o.InclinationDeg),
		"osculating_inclination_deg": structpb.NewNumberValue(o.OsculatingInclinationDeg),
		"regime":                     structpb.NewStringValue(string(o.Regime)),
	}}
}

// OrbitFromStruct decodes a propagated orbit.
func OrbitFromStruct(s *structpb.Struct) (OrbitResult, error) {
	if s == nil {
		return OrbitResult{}, fmt.Errorf("%w: %s is missing", ErrInvalidRequest, keyOrbit)
	}
	var o OrbitResult
	norad, err := numberField(s, "norad_id")
	if err != nil {
		return OrbitResult{}, err
	}
	o.NoradID = uint32(norad)
	if o.AltitudeKm, err = numberField(s, "altitude_km"); err != nil {
		return OrbitResult{}, err
	}
	if o.InclinationDeg, err = numberField(s, "inclination_deg"); err != nil {
		return OrbitResult{}, err
	}
	if o.OsculatingInclinationDeg, err = numberField(s, "osculating_inclination_deg"); err != nil {
		return OrbitResult{}, err
	}
	if at := stringField(s, "at"); at != "" {
		if o.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return OrbitResult{}, fmt.Errorf("%w: at %q", ErrInvalidRequest, at)
		}
	}
	o.Regime = model.OrbitalRegime(stringField(s, "regime"))
	return o, nil
}

func profileResultToStruct(pa state.ProfileAssessment) *structpb.Struct {
	fields := map[string]*structpb.Value{
		keyProfileID:  structpb.NewStringValue(pa.ProfileID),
		keyRevision:   structpb.NewNumberValue(float64(pa.Revision)),
		keyParameters: structpb.NewStructValue(ParametersToStruct(pa.Parameters)),
		keyAssessment: structpb.NewStructValue(AssessmentToStruct(pa.Assessment)),
		keyBreakdown:  structpb.NewStructValue(BreakdownToStruct(pa.Breakdown)),
	}
	if pa.Orbit != nil {
		fields[keyOrbit] = structpb.NewStructValue(OrbitToStruct(OrbitResultFrom(*pa.Orbit)))
	}
	return &structpb.Struct{Fields: fields}
}

func profileResultFromStruct(s *structpb.Struct) (ProfileResult, error) {
	var res ProfileResult
	res.ProfileID = stringField(s, keyProfileID)
	rev, err := numberField(s, keyRevision)
	if err != nil {
		return ProfileResult{}, err
	}
	res.Revision = uint64(rev)

	params := structField(s, keyParameters)
	if params == nil {
		return ProfileResult{}, fmt.Errorf("%w: %s is missing", ErrInvalidRequest, keyParameters)
	}
	values := make(map[string]float64, len(params.GetFields()))
	for name, v := range params.GetFields() {
		values[name] = v.GetNumberValue()
	}
	if res.Parameters, err = model.ParameterSetFromFields(values); err != nil {
		return ProfileResult{}, err
	}
	if res.Assessment, err = AssessmentFromStruct(structField(s, keyAssessment)); err != nil {
		return ProfileResult{}, err
	}
	if orbit := structField(s, keyOrbit); orbit != nil {
		o, err := OrbitFromStruct(orbit)
		if err != nil {
			return ProfileResult{}, err
		}
		res.Orbit = &o
	}
	return res, nil
}

func profileSummariesToStruct(profiles []model.Profile, assessments []state.ProfileAssessment) *structpb.Struct {
	byID := make(map[string]state.ProfileAssessment, len(assessments))
	for _, pa := range assessments {
		byID[pa.ProfileID] = pa
	}

	values := make([]*structpb.Value, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		source := "manual"
		if p.OrbitSource() == model.OrbitSourceTLE {
			source = "tle"
		}
		fields := map[string]*structpb.Value{
			"id":           structpb.NewStringValue(p.ID),
			"name":         structpb.NewStringValue(p.Name),
			"norad_id":     structpb.NewNumberValue(float64(p.NoradID)),
			"orbit_source": structpb.NewStringValue(source),
		}
		if pa, ok := byID[p.ID]; ok {
			fields[keyAssessment] = structpb.NewStructValue(AssessmentToStruct(pa.Assessment))
		}
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: fields}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyProfiles: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

func profileSummariesFromStruct(s *structpb.Struct) ([]ProfileSummary, error) {
	list := s.GetFields()[keyProfiles].GetListValue()
	out := make([]ProfileSummary, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		entry := v.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("%w: profile entry is not an object", ErrInvalidRequest)
		}
		ps := ProfileSummary{
			ID:          stringField(entry, "id"),
			Name:        stringField(entry, "name"),
			NoradID:     uint32(entry.GetFields()["norad_id"].GetNumberValue()),
			OrbitSource: stringField(entry, "orbit_source"),
		}
		if a := structField(entry, keyAssessment); a != nil {
			var err error
			if ps.Assessment, err = AssessmentFromStruct(a); err != nil {
				return nil, err
			}
		}
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func numberField(s *structpb.Struct, name string) (float64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s is missing", ErrInvalidRequest, name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, name)
	}
	return n.NumberValue, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func structField(s *structpb.Struct, name string) *structpb.Struct {
	return s.GetFields()[name].GetStructValue()
}
