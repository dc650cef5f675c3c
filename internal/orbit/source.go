package orbit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/large-farva/syzygy/internal/geo"
)

// ErrPropagation is returned when SGP4 output is not a usable Earth-orbit
// state (NaN/Inf, or a geocentric radius below MinRadiusKm).
var ErrPropagation = errors.New("propagation failed")

// MinRadiusKm is the smallest geocentric radius accepted from SGP4. Anything
// lower has decayed into the atmosphere. There is no upper bound: Molniya
// and GEO transfer orbits legitimately reach past 40000 km.
const MinRadiusKm = 6200.0

// muWGS72 is Earth's gravitational parameter in km³/s², matching the
// constants go-satellite propagates with.
const muWGS72 = 398600.8

// Gravity selects the geopotential constants used by SGP4.
type Gravity string

const (
	GravityWGS72 Gravity = "wgs72"
	GravityWGS84 Gravity = "wgs84"
)

// ParseGravity maps a config value to a Gravity. Empty means WGS-72.
func ParseGravity(s string) (Gravity, error) {
	switch g := Gravity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GravityWGS72, nil
	case GravityWGS72, GravityWGS84:
		return g, nil
	default:
		return "", fmt.Errorf("unknown gravity model %q (want wgs72 or wgs84)", s)
	}
}

func (g Gravity) constants() satellite.Gravity {
	if g == GravityWGS84 {
		return satellite.GravityWGS84
	}
	return satellite.GravityWGS72
}

// State is the Earth-centred state of the tracked body at one instant.
type State struct {
	Time time.Time

	// TEME position (km) and velocity (km/s), straight from SGP4.
	Position geo.Vector
	Velocity geo.Vector

	// ECEF position (m) and velocity (m/s).
	PositionECEF geo.Vector
	VelocityECEF geo.Vector

	// Sub-satellite point. Latitude/Longitude in radians, Altitude in km.
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Source propagates one element set. It holds no mutable state, so it is
// safe for concurrent use and Propagate is idempotent.
type Source struct {
	el  *Elements
	sat satellite.Satellite

	// skew is how far el.Epoch lies past the epoch go-satellite stores in
	// sat, which drops the sub-second part of the element epoch.
	skew time.Duration
}

// NewSource initializes the SGP4 record for el. el must come from
// ParseElements: go-satellite terminates the process on lines it cannot
// read, so nothing unvalidated may reach it.
func NewSource(el *Elements, gravity Gravity) (*Source, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: nil element set", ErrInvalidElementSet)
	}

	sat := satellite.TLEToSat(el.Line1, el.Line2, gravity.constants())
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init for %d: code=%d %s",
			ErrInvalidElementSet, el.SatNum, sat.Error, sat.ErrorStr)
	}
	rec, err := recordEpoch(el)
	if err != nil {
		return nil, err
	}
	return &Source{el: el, sat: sat, skew: el.Epoch.Sub(rec)}, nil
}

// recordEpoch reproduces the epoch go-satellite initializes its record with:
// the element epoch split into calendar fields with the seconds truncated.
// The float steps mirror the library's so both land on the same second.
func recordEpoch(el *Elements) (time.Time, error) {
	days, err := strconv.ParseFloat(strings.TrimSpace(el.Line1[20:32]), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch day %q", ErrInvalidElementSet, el.Line1[20:32])
	}
	dayOfYear := math.Floor(days)
	hours := (days - dayOfYear) * 24
	hr := math.Floor(hours)
	minutes := (hours - hr) * 60
	min := math.Floor(minutes)
	sec := math.Floor((minutes - min) * 60)

	start, err := parseEpoch(el.Line1[18:20] + "001")
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidElementSet, err)
	}
	return start.AddDate(0, 0, int(dayOfYear)-1).Add(
		time.Duration(hr)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second), nil
}

// Elements returns the element set the source was built from.
func (s *Source) Elements() *Elements { return s.el }

// Propagate returns the body's state at t.
//
// go-satellite only accepts whole seconds and measures time since a
// truncated epoch, so the query is moved back by that truncation, propagated
// to the second and carried forward over the fraction with a two-body step.
func (s *Source) Propagate(t time.Time) (State, error) {
	t = t.UTC()
	q := t.Add(-s.skew)
	whole := q.Truncate(time.Second)
	frac := q.Sub(whole).Seconds()

	year, month, day := whole.Date()
	hour, min, sec := whole.Clock()
	p, v := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)

	pos := geo.Vector{X: p.X, Y: p.Y, Z: p.Z}
	vel := geo.Vector{X: v.X, Y: v.Y, Z: v.Z}
	if err := checkState(pos, vel); err != nil {
		return State{}, fmt.Errorf("%w: %d at %s: %v", ErrPropagation, s.el.SatNum, t.Format(time.RFC3339), err)
	}

	if frac > 0 {
		r := pos.Norm()
		acc := pos.Scale(-muWGS72 / (r * r * r))
		pos = pos.Add(vel.Scale(frac)).Add(acc.Scale(0.5 * frac * frac))
		vel = vel.Add(acc.Scale(frac))
	}

	gmst := geo.GMST(t)
	ecefPos, ecefVel := geo.InertialToECEF(pos, vel, gmst)
	ecefPos = ecefPos.Scale(1000)
	ecefVel = ecefVel.Scale(1000)

	lat, lon, alt := geo.ECEFToGeodetic(ecefPos)

	return State{
		Time:         t,
		Position:     pos,
		Velocity:     vel,
		PositionECEF: ecefPos,
		VelocityECEF: ecefVel,
		Latitude:     lat,
		Longitude:    lon,
		Altitude:     alt / 1000,
	}, nil
}

// checkState rejects SGP4 output that cannot be an Earth-orbit state. The
// library reports its own failures only on a copy of the record, so the
// output itself is all there is to inspect.
func checkState(pos, vel geo.Vector) error {
	if !pos.IsFinite() || !vel.IsFinite() {
		return errors.New("output is NaN/Inf")
	}
	if mag := pos.Norm(); mag < MinRadiusKm {
		return fmt.Errorf("position magnitude %.1f km is below the surface", mag)
	}
	return nil
}
