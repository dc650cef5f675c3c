// Package observer reduces Earth-centred states to what a ground station
// sees: azimuth, elevation, range and their rates. It also carries the
// closed-form Sun and Moon ephemerides and the refraction model.
package observer

import (
	"errors"
	"fmt"
	"math"

	"github.com/large-farva/syzygy/internal/geo"
)

// ErrInvalidLocation is returned by NewLocation for coordinates that are
// out of range.
var ErrInvalidLocation = errors.New("invalid location")

// MinAltitude is the default floor for station altitude in meters. Below
// sea level is allowed down to the deepest inhabited depressions.
const MinAltitude = -500.0

// Location is a fixed geodetic station. Latitude and longitude are radians,
// altitude is meters above the WGS-84 ellipsoid.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	Altitude  float64

	ecef                           geo.Vector
	sinLat, cosLat, sinLon, cosLon float64
}

// Option tunes NewLocation.
type Option func(*options)

type options struct {
	minAltitude float64
}

// WithMinAltitude overrides the altitude floor.
func WithMinAltitude(m float64) Option {
	return func(o *options) { o.minAltitude = m }
}

// NewLocation validates and builds a station. Longitude is folded into
// [-π, π).
func NewLocation(name string, lat, lon, alt float64, opts ...Option) (Location, error) {
	o := options{minAltitude: MinAltitude}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case math.IsNaN(lat) || lat < -math.Pi/2 || lat > math.Pi/2:
		return Location{}, fmt.Errorf("%w: latitude %v outside [-π/2, π/2]", ErrInvalidLocation, lat)
	case math.IsNaN(lon) || math.IsInf(lon, 0):
		return Location{}, fmt.Errorf("%w: longitude %v is not finite", ErrInvalidLocation, lon)
	case math.IsNaN(alt) || math.IsInf(alt, 0):
		return Location{}, fmt.Errorf("%w: altitude %v is not finite", ErrInvalidLocation, alt)
	case alt < o.minAltitude:
		return Location{}, fmt.Errorf("%w: altitude %.1f m below floor %.1f m", ErrInvalidLocation, alt, o.minAltitude)
	}

	lon = geo.WrapPi(lon)
	l := Location{
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
		ecef:      geo.GeodeticToECEF(lat, lon, alt),
	}
	l.sinLat, l.cosLat = math.Sincos(lat)
	l.sinLon, l.cosLon = math.Sincos(lon)
	return l, nil
}

// ECEF returns the station position in meters.
func (l Location) ECEF() geo.Vector { return l.ecef }

// enu rotates an ECEF offset into the local East-North-Up frame.
func (l Location) enu(d geo.Vector) (east, north, up float64) {
	east = -l.sinLon*d.X + l.cosLon*d.Y
	north = -l.sinLat*l.cosLon*d.X - l.sinLat*l.sinLon*d.Y + l.cosLat*d.Z
	up = l.cosLat*l.cosLon*d.X + l.cosLat*l.sinLon*d.Y + l.sinLat*d.Z
	return east, north, up
}

// lookAngles returns azimuth (0 = north, clockwise, [0, 2π)), elevation and
// range in meters toward an ECEF point in meters.
func (l Location) lookAngles(target geo.Vector) (az, el, rng float64) {
	d := target.Sub(l.ecef)
	east, north, up := l.enu(d)

	rng = math.Sqrt(east*east + north*north + up*up)
	if rng == 0 {
		return 0, math.Pi / 2, 0
	}
	el = math.Asin(math.Max(-1, math.Min(1, up/rng)))
	az = geo.WrapTwoPi(math.Atan2(east, north))
	return az, el, rng
}
