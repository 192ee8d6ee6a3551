package core

import "math"

// EarthRadiusKm is the mean Earth radius used by the orbit helpers
// (kilometres).
const EarthRadiusKm = 6371.0

// Vec3 is an ECI-style vector in kilometres (or km/s for velocities).
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// InclinationFromState returns the osculating inclination in degrees of an
// orbit with inertial position r and velocity v. The angular momentum
// h = r × v is normal to the orbital plane; the inclination is the angle
// between h and the inertial Z axis. A degenerate (radial) state yields 0.
func InclinationFromState(r, v Vec3) float64 {
	h := r.Cross(v)
	hNorm := h.Norm()
	if hNorm == 0 {
		return 0
	}
	cosI := h.Z / hNorm
	if cosI > 1 {
		cosI = 1
	} else if cosI < -1 {
		cosI = -1
	}
	return math.Acos(cosI) * 180.0 / math.Pi
}
