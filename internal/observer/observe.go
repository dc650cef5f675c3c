package observer

import (
	"time"

	"github.com/large-farva/syzygy/internal/geo"
	"github.com/large-farva/syzygy/internal/orbit"
)

// Observation is one body as seen from a Location. Angles are radians,
// rates rad/s, range km and range rate km/s.
type Observation struct {
	Time          time.Time
	Azimuth       float64
	Elevation     float64
	AzimuthRate   float64
	ElevationRate float64
	Range         float64
	RangeRate     float64
}

// AzimuthDeg and ElevationDeg are for presentation and threshold checks.
func (o Observation) AzimuthDeg() float64   { return geo.Deg(o.Azimuth) }
func (o Observation) ElevationDeg() float64 { return geo.Deg(o.Elevation) }

// Visible reports whether the body is above the geometric horizon.
func (o Observation) Visible() bool { return o.Elevation > 0 }

// rateStep is the half-width of the central difference used for rates.
const rateStep = 0.5 // seconds

// Observe reduces a propagated state to look angles. Rates are a central
// difference along the state's ECEF velocity; the range rate is the exact
// projection of that velocity on the line of sight.
func (l Location) Observe(s orbit.State) Observation {
	az, el, rng := l.lookAngles(s.PositionECEF)

	before := s.PositionECEF.Sub(s.VelocityECEF.Scale(rateStep))
	after := s.PositionECEF.Add(s.VelocityECEF.Scale(rateStep))
	az0, el0, _ := l.lookAngles(before)
	az1, el1, _ := l.lookAngles(after)

	var rangeRate float64
	if rng > 0 {
		rangeRate = s.PositionECEF.Sub(l.ecef).Dot(s.VelocityECEF) / rng
	}

	return Observation{
		Time:          s.Time,
		Azimuth:       az,
		Elevation:     el,
		AzimuthRate:   geo.WrapPi(az1-az0) / (2 * rateStep),
		ElevationRate: (el1 - el0) / (2 * rateStep),
		Range:         rng / 1000,
		RangeRate:     rangeRate / 1000,
	}
}

// ObserveSun returns the Sun's topocentric position at t.
func (l Location) ObserveSun(t time.Time) Observation {
	return l.observeBody(t, SunECEF)
}

// ObserveMoon returns the Moon's topocentric position at t. Parallax is
// included since the Moon is close enough for it to reach a degree.
func (l Location) ObserveMoon(t time.Time) Observation {
	return l.observeBody(t, MoonECEF)
}

// observeBody differences an ephemeris evaluated either side of t.
func (l Location) observeBody(t time.Time, ephem func(time.Time) geo.Vector) Observation {
	step := time.Duration(rateStep * float64(time.Second))

	az, el, rng := l.lookAngles(ephem(t))
	az0, el0, rng0 := l.lookAngles(ephem(t.Add(-step)))
	az1, el1, rng1 := l.lookAngles(ephem(t.Add(step)))

	return Observation{
		Time:          t,
		Azimuth:       az,
		Elevation:     el,
		AzimuthRate:   geo.WrapPi(az1-az0) / (2 * rateStep),
		ElevationRate: (el1 - el0) / (2 * rateStep),
		Range:         rng / 1000,
		RangeRate:     (rng1 - rng0) / (2 * rateStep) / 1000,
	}
}
