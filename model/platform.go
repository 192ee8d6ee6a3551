package model

// OrbitSource indicates where a profile's altitude and inclination come from.
type OrbitSource int

const (
	// OrbitSourceManual uses the altitude and inclination in Parameters as-is.
	OrbitSourceManual OrbitSource = iota
	// OrbitSourceTLE derives altitude and inclination from the profile's TLE.
	OrbitSourceTLE
)

// Profile is a named satellite whose parameters are assessed whenever they
// change.
type Profile struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`

	NoradID  uint32 `json:"norad_id,omitempty" yaml:"norad_id,omitempty" toml:"norad_id"`
	TLELine1 string `json:"tle_line1,omitempty" yaml:"tle_line1,omitempty" toml:"tle_line1"`
	TLELine2 string `json:"tle_line2,omitempty" yaml:"tle_line2,omitempty" toml:"tle_line2"`

	Parameters ParameterSet `json:"parameters" yaml:"parameters" toml:"parameters"`
}

// OrbitSource reports whether the profile carries a usable TLE pair.
func (p *Profile) OrbitSource() OrbitSource {
	if p != nil && p.TLELine1 != "" && p.TLELine2 != "" {
		return OrbitSourceTLE
	}
	return OrbitSourceManual
}
