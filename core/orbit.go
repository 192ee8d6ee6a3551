package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/debris-risk/model"
)

// ErrInvalidTLE indicates a malformed two-line element set.
var ErrInvalidTLE = errors.New("invalid TLE")

// tleLineLength is the fixed width of a TLE line including its checksum.
const tleLineLength = 69

// OrbitState is the orbit of a TLE-described satellite at a given instant.
type OrbitState struct {
	At      time.Time
	NoradID uint32

	// AltitudeKm is the geodetic altitude above the WGS ellipsoid.
	AltitudeKm float64
	// InclinationDeg is the mean inclination published in the TLE.
	InclinationDeg float64
	// OsculatingInclinationDeg is derived from the propagated state vector.
	OsculatingInclinationDeg float64

	PositionECI Vec3 // km
	VelocityECI Vec3 // km/s

	Regime model.OrbitalRegime
}

// Apply returns p with its altitude and inclination taken from the orbit.
func (o OrbitState) Apply(p model.ParameterSet) model.ParameterSet {
	p.OrbitalAltitude = o.AltitudeKm
	p.OrbitalInclination = o.InclinationDeg
	return p
}

// OrbitFromTLE validates a TLE pair and propagates it with SGP4 to at. A
// zero at propagates to the TLE epoch.
func OrbitFromTLE(line1, line2 string, at time.Time) (OrbitState, error) {
	elems, err := parseTLE(line1, line2)
	if err != nil {
		return OrbitState{}, err
	}
	if at.IsZero() {
		at = elems.epoch
	}
	at = at.UTC()

	sat := satellite.TLEToSat(elems.line1, elems.line2, satellite.GravityWGS72)

	year, month, day := at.Date()
	hour, minute, sec := at.Clock()
	posECI, velECI := satellite.Propagate(sat, year, int(month), day, hour, minute, sec)

	pos := Vec3{X: posECI.X, Y: posECI.Y, Z: posECI.Z}
	vel := Vec3{X: velECI.X, Y: velECI.Y, Z: velECI.Z}
	if !pos.IsFinite() || !vel.IsFinite() || pos.Norm() < EarthRadiusKm/2 {
		return OrbitState{}, fmt.Errorf("%w: propagation to %s failed", ErrInvalidTLE, at.Format(time.RFC3339))
	}

	jd := satellite.JDay(year, int(month), day, hour, minute, sec)
	gmst := satellite.ThetaG_JD(jd)
	altitude, _, _ := satellite.ECIToLLA(posECI, gmst)

	return OrbitState{
		At:                       at,
		NoradID:                  elems.noradID,
		AltitudeKm:               altitude,
		InclinationDeg:           elems.inclinationDeg,
		OsculatingInclinationDeg: InclinationFromState(pos, vel),
		PositionECI:              pos,
		VelocityECI:              vel,
		Regime:                   ClassifyRegime(altitude),
	}, nil
}

// TLEEpoch returns the epoch encoded in a TLE pair.
func TLEEpoch(line1, line2 string) (time.Time, error) {
	elems, err := parseTLE(line1, line2)
	if err != nil {
		return time.Time{}, err
	}
	return elems.epoch, nil
}

type tleElements struct {
	line1, line2   string
	noradID        uint32
	epoch          time.Time
	inclinationDeg float64
}

// parseTLE checks structure and checksums before anything reaches the SGP4
// parser, which does not report malformed numbers as errors.
func parseTLE(line1, line2 string) (tleElements, error) {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")

	if err := checkTLELine(line1, '1'); err != nil {
		return tleElements{}, err
	}
	if err := checkTLELine(line2, '2'); err != nil {
		return tleElements{}, err
	}

	cat1 := strings.TrimSpace(line1[2:7])
	cat2 := strings.TrimSpace(line2[2:7])
	if cat1 != cat2 {
		return tleElements{}, fmt.Errorf("%w: catalog numbers differ (%q vs %q)", ErrInvalidTLE, cat1, cat2)
	}
	norad, err := strconv.ParseUint(cat1, 10, 32)
	if err != nil {
		return tleElements{}, fmt.Errorf("%w: catalog number %q", ErrInvalidTLE, cat1)
	}

	epoch, err := parseTLEEpoch(line1[18:32])
	if err != nil {
		return tleElements{}, err
	}

	numeric := []struct {
		name  string
		field string
	}{
		{"inclination", line2[8:16]},
		{"right ascension", line2[17:25]},
		{"eccentricity", "0." + strings.TrimSpace(line2[26:33])},
		{"argument of perigee", line2[34:42]},
		{"mean anomaly", line2[43:51]},
		{"mean motion", line2[52:63]},
		{"first derivative of mean motion", line1[33:43]},
	}
	values := make(map[string]float64, len(numeric))
	for _, n := range numeric {
		v, err := strconv.ParseFloat(strings.TrimSpace(n.field), 64)
		if err != nil {
			return tleElements{}, fmt.Errorf("%w: %s %q", ErrInvalidTLE, n.name, n.field)
		}
		values[n.name] = v
	}
	for _, exp := range []struct{ name, field string }{
		{"second derivative of mean motion", line1[44:52]},
		{"drag term", line1[53:61]},
	} {
		if !validImpliedDecimal(exp.field) {
			return tleElements{}, fmt.Errorf("%w: %s %q", ErrInvalidTLE, exp.name, exp.field)
		}
	}

	inc := values["inclination"]
	if inc < 0 || inc > 180 {
		return tleElements{}, fmt.Errorf("%w: inclination %g out of range", ErrInvalidTLE, inc)
	}
	if values["mean motion"] <= 0 {
		return tleElements{}, fmt.Errorf("%w: mean motion must be positive", ErrInvalidTLE)
	}

	return tleElements{
		line1:          line1,
		line2:          line2,
		noradID:        uint32(norad),
		epoch:          epoch,
		inclinationDeg: inc,
	}, nil
}

func checkTLELine(line string, number byte) error {
	if len(line) < tleLineLength {
		return fmt.Errorf("%w: line %c has %d characters, want %d", ErrInvalidTLE, number, len(line), tleLineLength)
	}
	if line[0] != number || line[1] != ' ' {
		return fmt.Errorf("%w: line %c does not start with %q", ErrInvalidTLE, number, string(number)+" ")
	}
	want := line[tleLineLength-1]
	if want < '0' || want > '9' {
		return fmt.Errorf("%w: line %c checksum %q is not a digit", ErrInvalidTLE, number, want)
	}
	if got := tleChecksum(line); got != int(want-'0') {
		return fmt.Errorf("%w: line %c checksum %d, want %c", ErrInvalidTLE, number, got, want)
	}
	return nil
}

// tleChecksum sums the digits of the first 68 columns, counting '-' as 1.
func tleChecksum(line string) int {
	sum := 0
	for i := 0; i < tleLineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func parseTLEEpoch(field string) (time.Time, error) {
	field = strings.TrimSpace(field)
	if len(field) < 5 {
		return time.Time{}, fmt.Errorf("%w: epoch %q", ErrInvalidTLE, field)
	}
	yy, err := strconv.Atoi(field[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch year %q", ErrInvalidTLE, field[:2])
	}
	dayOfYear, err := strconv.ParseFloat(field[2:], 64)
	if err != nil || dayOfYear < 1 || dayOfYear >= 367 {
		return time.Time{}, fmt.Errorf("%w: epoch day %q", ErrInvalidTLE, field[2:])
	}

	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := time.Duration(math.Round((dayOfYear - 1) * 24 * float64(time.Hour)))
	return start.Add(offset), nil
}

// validImpliedDecimal accepts the TLE "±NNNNN±N" notation, e.g. " 10270-4".
func validImpliedDecimal(field string) bool {
	f := strings.TrimSpace(field)
	if f == "" {
		return false
	}
	if f[0] == '-' || f[0] == '+' {
		f = f[1:]
	}
	if len(f) < 3 {
		return false
	}
	mantissa, exp := f[:len(f)-2], f[len(f)-2:]
	if exp[0] != '-' && exp[0] != '+' {
		return false
	}
	if exp[1] < '0' || exp[1] > '9' {
		return false
	}
	for i := 0; i < len(mantissa); i++ {
		if mantissa[i] < '0' || mantissa[i] > '9' {
			return false
		}
	}
	return true
}
