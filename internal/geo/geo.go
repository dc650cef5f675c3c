// Package geo holds the coordinate-frame plumbing shared by the orbit and
// observer packages: Julian dates, Greenwich sidereal time, the TEME to ECEF
// rotation and WGS-84 geodetic conversions.
//
// The TEME to ECEF step is the simplified GMST-only rotation (no polar
// motion, no equation of the equinoxes). The error is tens of meters, far
// below anything a look-angle threshold in degrees can see.
package geo

import (
	"math"
	"time"
)

// WGS-84 ellipsoid parameters.
const (
	WGS84A  = 6378137.0             // semi-major axis (meters)
	WGS84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = WGS84F * (2 - WGS84F) // first eccentricity squared
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// J2000 is the Julian Date of the J2000.0 epoch.
const J2000 = 2451545.0

// Vector is a Cartesian 3-vector. Units depend on the caller.
type Vector struct {
	X, Y, Z float64
}

func (v Vector) Add(o Vector) Vector    { return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector) Sub(o Vector) Vector    { return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector) Scale(k float64) Vector { return Vector{v.X * k, v.Y * k, v.Z * k} }
func (v Vector) Dot(o Vector) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vector) Norm() float64          { return math.Sqrt(v.Dot(v)) }
func (v Vector) IsFinite() bool         { return finite(v.X) && finite(v.Y) && finite(v.Z) }
func finite(f float64) bool             { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// JulianDate converts a time.Time to a UTC Julian Date, keeping nanosecond
// precision.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	if m <= 2 {
		y -= 1
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5

	secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return jd + secs/86400.0
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado
// Eq 3-47), normalized to [0, 2π).
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - J2000) / 36525.0

	// 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}

// InertialToECEF rotates a position/velocity pair from an Earth-centred
// inertial frame (TEME or mean-of-date) into ECEF about the Z axis by gmst.
// Units pass through unchanged; the Earth-rotation term assumes seconds.
//
//	r_ECEF = R3(θ) r
//	v_ECEF = R3(θ) v − ω × r_ECEF
func InertialToECEF(pos, vel Vector, gmst float64) (Vector, Vector) {
	c := math.Cos(gmst)
	s := math.Sin(gmst)

	p := Vector{
		X: pos.X*c + pos.Y*s,
		Y: -pos.X*s + pos.Y*c,
		Z: pos.Z,
	}
	v := Vector{
		X: vel.X*c + vel.Y*s + OmegaEarth*p.Y,
		Y: -vel.X*s + vel.Y*c - OmegaEarth*p.X,
		Z: vel.Z,
	}
	return p, v
}

// GeodeticToECEF converts geodetic latitude/longitude (radians) and height
// above the ellipsoid (meters) to ECEF meters.
func GeodeticToECEF(lat, lon, alt float64) Vector {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	n := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Vector{
		X: (n + alt) * cosLat * cosLon,
		Y: (n + alt) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + alt) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF meters to geodetic latitude/longitude
// (radians) and height above the ellipsoid (meters). Bowring iteration,
// which settles in two or three rounds for anything in Earth orbit.
func ECEFToGeodetic(r Vector) (lat, lon, alt float64) {
	lon = math.Atan2(r.Y, r.X)
	p := math.Hypot(r.X, r.Y)

	lat = math.Atan2(r.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(r.Z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(r.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}
	return lat, lon, alt
}

// Rad converts degrees to radians.
func Rad(deg float64) float64 { return deg * math.Pi / 180.0 }

// Deg converts radians to degrees.
func Deg(rad float64) float64 { return rad * 180.0 / math.Pi }

// WrapTwoPi folds an angle into [0, 2π).
func WrapTwoPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// WrapPi folds an angle into [-π, π).
func WrapPi(a float64) float64 {
	return WrapTwoPi(a+math.Pi) - math.Pi
}
