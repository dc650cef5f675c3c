package observer

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/akhenakh/sgp4"

	"github.com/large-farva/syzygy/internal/geo"
	"github.com/large-farva/syzygy/internal/orbit"
)

const (
	issLine1 = "1 25544U 98067A   15129.86961041  .00015753  00000-0  23097-3 0  9998"
	issLine2 = "2 25544  51.6464 275.3867 0006524 289.1638 208.5861 15.55704207942078"
)

func toledo(t *testing.T) Location {
	t.Helper()
	loc, err := NewLocation("Me", geo.Rad(41.6191), geo.Rad(-83.5807), 0)
	if err != nil {
		t.Fatalf("NewLocation: %v", err)
	}
	return loc
}

func issSource(t *testing.T) *orbit.Source {
	t.Helper()
	el, err := orbit.ParseElements("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}
	src, err := orbit.NewSource(el, orbit.GravityWGS72)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return src
}

func TestNewLocation(t *testing.T) {
	tests := []struct {
		name          string
		lat, lon, alt float64
		opts          []Option
		wantErr       bool
	}{
		{"toledo", geo.Rad(41.6191), geo.Rad(-83.5807), 0, nil, false},
		{"north pole", math.Pi / 2, 0, 0, nil, false},
		{"south pole", -math.Pi / 2, 0, 0, nil, false},
		{"dead sea", geo.Rad(31.5), geo.Rad(35.5), -430, nil, false},
		{"mountain", geo.Rad(27.99), geo.Rad(86.93), 8848, nil, false},
		{"longitude past 180 wraps", 0, geo.Rad(270), 0, nil, false},
		{"latitude in degrees by mistake", 41.6191, 0, 0, nil, true},
		{"latitude below -90", -math.Pi/2 - 1e-9, 0, 0, nil, true},
		{"nan latitude", math.NaN(), 0, 0, nil, true},
		{"inf longitude", 0, math.Inf(1), 0, nil, true},
		{"below floor", 0, 0, -501, nil, true},
		{"custom floor", 0, 0, -100, []Option{WithMinAltitude(0)}, true},
		{"nan altitude", 0, 0, math.NaN(), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLocation("x", tt.lat, tt.lon, tt.alt, tt.opts...)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLocation) {
					t.Errorf("err = %v, want ErrInvalidLocation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewLocationWrapsLongitude(t *testing.T) {
	loc, err := NewLocation("x", 0, geo.Rad(270), 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(loc.Longitude-geo.Rad(-90)) > 1e-12 {
		t.Errorf("longitude = %f°, want -90°", geo.Deg(loc.Longitude))
	}
}

func TestLookAnglesCardinal(t *testing.T) {
	loc, _ := NewLocation("eq", 0, 0, 0)
	base := loc.ECEF()

	tests := []struct {
		name   string
		target geo.Vector
		az, el float64 // degrees; az ignored at the zenith
	}{
		{"zenith", base.Add(geo.Vector{X: 400000}), -1, 90},
		{"north horizon", base.Add(geo.Vector{Z: 100000}), 0, 0},
		{"east horizon", base.Add(geo.Vector{Y: 100000}), 90, 0},
		{"west horizon", base.Add(geo.Vector{Y: -100000}), 270, 0},
		{"nadir", base.Add(geo.Vector{X: -1000}), -1, -90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			az, el, _ := loc.lookAngles(tt.target)
			if math.Abs(geo.Deg(el)-tt.el) > 1e-6 {
				t.Errorf("elevation = %.6f°, want %.1f°", geo.Deg(el), tt.el)
			}
			if tt.az >= 0 && math.Abs(geo.Deg(az)-tt.az) > 1e-6 {
				t.Errorf("azimuth = %.6f°, want %.1f°", geo.Deg(az), tt.az)
			}
		})
	}
}

// sezLookAngles is an independent reduction: akhenakh/sgp4 propagation from
// the full element epoch, IAU-82 sidereal rotation and a South-East-Zenith
// horizon frame.
func sezLookAngles(t *testing.T, tm time.Time, latDeg, lonDeg, altM float64) (azDeg, elDeg float64) {
	t.Helper()
	tle, err := sgp4.ParseTLE(issLine1 + "\n" + issLine2)
	if err != nil {
		t.Fatalf("ParseTLE: %v", err)
	}
	eci, err := tle.FindPositionAtTime(tm)
	if err != nil {
		t.Fatalf("FindPositionAtTime(%v): %v", tm, err)
	}

	days := tm.Sub(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)).Hours() / 24
	c := days / 36525
	gmst := math.Mod(280.46061837+360.98564736629*days+0.000387933*c*c-c*c*c/38710000, 360) * math.Pi / 180
	ex := eci.Position.X*math.Cos(gmst) + eci.Position.Y*math.Sin(gmst)
	ey := -eci.Position.X*math.Sin(gmst) + eci.Position.Y*math.Cos(gmst)
	ez := eci.Position.Z

	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	a := 6378.137
	f := 1 / 298.257223563
	e2 := f * (2 - f)
	n := a / math.Sqrt(1-e2*math.Sin(lat)*math.Sin(lat))
	ox := (n + altM/1000) * math.Cos(lat) * math.Cos(lon)
	oy := (n + altM/1000) * math.Cos(lat) * math.Sin(lon)
	oz := (n*(1-e2) + altM/1000) * math.Sin(lat)

	rx, ry, rz := ex-ox, ey-oy, ez-oz
	south := math.Sin(lat)*math.Cos(lon)*rx + math.Sin(lat)*math.Sin(lon)*ry - math.Cos(lat)*rz
	east := -math.Sin(lon)*rx + math.Cos(lon)*ry
	zenith := math.Cos(lat)*math.Cos(lon)*rx + math.Cos(lat)*math.Sin(lon)*ry + math.Sin(lat)*rz
	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	az := math.Atan2(east, -south) * 180 / math.Pi
	if az < 0 {
		az += 360
	}
	return az, math.Asin(zenith/rng) * 180 / math.Pi
}

func TestObserveISSFromToledo(t *testing.T) {
	src := issSource(t)
	loc := toledo(t)

	times := []time.Time{
		time.Date(2015, 5, 9, 20, 52, 14, 0, time.UTC),
		time.Date(2015, 5, 9, 20, 52, 14, 339424000, time.UTC),
		time.Date(2015, 5, 10, 2, 14, 0, 0, time.UTC),
		time.Date(2015, 5, 10, 13, 37, 51, 600000000, time.UTC),
	}
	for _, tm := range times {
		st, err := src.Propagate(tm)
		if err != nil {
			t.Fatalf("Propagate(%v): %v", tm, err)
		}
		obs := loc.Observe(st)
		refAz, refEl := sezLookAngles(t, tm, 41.6191, -83.5807, 0)

		if d := math.Abs(geo.Deg(geo.WrapPi(obs.Azimuth - geo.Rad(refAz)))); d > 0.01 {
			t.Errorf("%v: azimuth %.4f°, reference %.4f°", tm, obs.AzimuthDeg(), refAz)
		}
		if d := math.Abs(obs.ElevationDeg() - refEl); d > 0.01 {
			t.Errorf("%v: elevation %.4f°, reference %.4f°", tm, obs.ElevationDeg(), refEl)
		}
	}
}

func TestObserveAntipodeIsMinimum(t *testing.T) {
	src := issSource(t)
	tm := time.Date(2015, 5, 10, 6, 0, 0, 0, time.UTC)
	st, err := src.Propagate(tm)
	if err != nil {
		t.Fatal(err)
	}

	anti, err := NewLocation("antipode", -st.Latitude, st.Longitude+math.Pi, 0)
	if err != nil {
		t.Fatal(err)
	}
	minEl := anti.Observe(st).Elevation
	if geo.Deg(minEl) > -89.5 {
		t.Errorf("antipode elevation = %.3f°, want about -90°", geo.Deg(minEl))
	}

	for lat := -80.0; lat <= 80; lat += 20 {
		for lon := -180.0; lon < 180; lon += 30 {
			loc, _ := NewLocation("grid", geo.Rad(lat), geo.Rad(lon), 0)
			if el := loc.Observe(st).Elevation; el < minEl {
				t.Errorf("(%.0f, %.0f) sees %.3f°, below antipode %.3f°", lat, lon, geo.Deg(el), geo.Deg(minEl))
			}
		}
	}
}

func TestObserveRatesMatchFiniteDifference(t *testing.T) {
	src := issSource(t)
	loc := toledo(t)
	tm := time.Date(2015, 5, 10, 2, 14, 0, 0, time.UTC)

	at := func(d time.Duration) Observation {
		st, err := src.Propagate(tm.Add(d))
		if err != nil {
			t.Fatal(err)
		}
		return loc.Observe(st)
	}
	before, now, after := at(-500*time.Millisecond), at(0), at(500*time.Millisecond)

	azRate := geo.WrapPi(after.Azimuth-before.Azimuth) / 1.0
	elRate := (after.Elevation - before.Elevation) / 1.0
	rangeRate := after.Range - before.Range

	if math.Abs(now.AzimuthRate-azRate) > 1e-4 {
		t.Errorf("azimuth rate %.6f, finite difference %.6f", now.AzimuthRate, azRate)
	}
	if math.Abs(now.ElevationRate-elRate) > 1e-4 {
		t.Errorf("elevation rate %.6f, finite difference %.6f", now.ElevationRate, elRate)
	}
	if math.Abs(now.RangeRate-rangeRate) > 1e-2 {
		t.Errorf("range rate %.4f km/s, finite difference %.4f", now.RangeRate, rangeRate)
	}
}

func TestObserveIdempotent(t *testing.T) {
	src := issSource(t)
	loc := toledo(t)
	tm := time.Date(2015, 5, 10, 2, 14, 0, 123000000, time.UTC)

	st, err := src.Propagate(tm)
	if err != nil {
		t.Fatal(err)
	}
	if a, b := loc.Observe(st), loc.Observe(st); a != b {
		t.Errorf("Observe not idempotent: %+v != %+v", a, b)
	}
	if a, b := loc.ObserveMoon(tm), loc.ObserveMoon(tm); a != b {
		t.Errorf("ObserveMoon not idempotent: %+v != %+v", a, b)
	}
}

func declination(v geo.Vector) float64 {
	return geo.Deg(math.Asin(v.Z / v.Norm()))
}

func TestSunDeclination(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		dec  float64
		dist float64 // AU
	}{
		{"march equinox", time.Date(2024, 3, 20, 3, 6, 0, 0, time.UTC), 0, 0.9959},
		{"june solstice", time.Date(2024, 6, 20, 20, 51, 0, 0, time.UTC), 23.44, 1.0162},
		{"december solstice", time.Date(2024, 12, 21, 9, 20, 0, 0, time.UTC), -23.44, 0.9837},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := SunInertial(tt.time)
			if d := declination(v); math.Abs(d-tt.dec) > 0.05 {
				t.Errorf("declination = %.4f°, want %.2f°", d, tt.dec)
			}
			if r := v.Norm() / au; math.Abs(r-tt.dist) > 0.001 {
				t.Errorf("distance = %.5f AU, want %.4f", r, tt.dist)
			}
		})
	}
}

func TestMoonDistance(t *testing.T) {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 60; d++ {
		tm := start.AddDate(0, 0, d)
		if r := MoonInertial(tm).Norm() / 1000; r < 356000 || r > 407000 {
			t.Errorf("%v: moon distance %.0f km out of range", tm, r)
		}
	}
}

// Total solar eclipse of 2024-04-08 near mid-totality over Dallas.
func TestSunMoonAlignedDuringEclipse(t *testing.T) {
	loc, _ := NewLocation("dallas", geo.Rad(32.7767), geo.Rad(-96.797), 0)
	tm := time.Date(2024, 4, 8, 18, 42, 0, 0, time.UTC)

	sun := loc.ObserveSun(tm)
	moon := loc.ObserveMoon(tm)

	if d := math.Abs(sun.AzimuthDeg() - moon.AzimuthDeg()); d > 0.6 {
		t.Errorf("azimuth gap %.3f°, sun %.3f° moon %.3f°", d, sun.AzimuthDeg(), moon.AzimuthDeg())
	}
	if d := math.Abs(sun.ElevationDeg() - moon.ElevationDeg()); d > 0.3 {
		t.Errorf("elevation gap %.3f°", d)
	}
	if sun.ElevationDeg() < 60 || sun.ElevationDeg() > 70 {
		t.Errorf("sun elevation %.2f°, want about 65°", sun.ElevationDeg())
	}

	// A day earlier the Moon is well clear of the Sun.
	day := tm.Add(-24 * time.Hour)
	if d := math.Abs(loc.ObserveSun(day).AzimuthDeg() - loc.ObserveMoon(day).AzimuthDeg()); d < 5 {
		t.Errorf("azimuth gap a day earlier %.3f°, want > 5°", d)
	}
}

func TestSunRates(t *testing.T) {
	loc := toledo(t)
	tm := time.Date(2024, 6, 20, 17, 0, 0, 0, time.UTC)
	sun := loc.ObserveSun(tm)

	// Sidereal drift caps angular rates at roughly Earth's rotation rate
	// scaled by 1/cos(el) for azimuth.
	if math.Abs(sun.ElevationRate) > geo.OmegaEarth {
		t.Errorf("sun elevation rate %.3e rad/s too fast", sun.ElevationRate)
	}
	if math.Abs(sun.RangeRate) > 1.0 {
		t.Errorf("sun range rate %.3f km/s, want < 1", sun.RangeRate)
	}
}

func TestApparentElevation(t *testing.T) {
	// At or below the horizon the correction only lifts.
	for deg := -90.0; deg <= 0; deg += 0.25 {
		el := geo.Rad(deg)
		if got := ApparentElevation(el); got < el {
			t.Errorf("ApparentElevation(%.2f°) = %.4f° below input", deg, geo.Deg(got))
		}
	}

	// A true elevation of zero is lifted by about 29 arc-minutes.
	if r := geo.Deg(ApparentElevation(0)) * 60; math.Abs(r-29.0) > 0.5 {
		t.Errorf("horizon refraction = %.2f', want ~29'", r)
	}

	// Converges toward the input.
	if d := geo.Deg(ApparentElevation(geo.Rad(45)) - geo.Rad(45)); d > 0.02 {
		t.Errorf("refraction at 45° = %.4f°, want < 0.02°", d)
	}
	if d := geo.Deg(ApparentElevation(geo.Rad(90)) - geo.Rad(90)); math.Abs(d) > 1e-4 {
		t.Errorf("refraction at zenith = %.6f°", d)
	}
}

func TestApparentElevationMonotonicContinuous(t *testing.T) {
	prev := ApparentElevation(geo.Rad(-90))
	prevCorr := math.Inf(1)
	for deg := -89.99; deg <= 90; deg += 0.01 {
		got := ApparentElevation(geo.Rad(deg))
		if got < prev {
			t.Fatalf("not monotonic at %.2f°: %.6f < %.6f", deg, got, prev)
		}
		if geo.Deg(got-prev) > 0.02 {
			t.Fatalf("jump at %.2f°: %.6f°", deg, geo.Deg(got-prev))
		}
		corr := got - geo.Rad(deg)
		if corr > prevCorr+1e-12 {
			t.Fatalf("correction grew at %.2f°", deg)
		}
		prev, prevCorr = got, corr
	}
}

func TestDaylight(t *testing.T) {
	loc := toledo(t)
	noon := time.Date(2024, 6, 20, 17, 30, 0, 0, time.UTC)
	d := loc.Daylight(noon)
	if d.Polar {
		t.Fatal("Toledo is not polar")
	}
	if !d.SunUp {
		t.Error("sun should be up at local solar noon")
	}
	if !d.Sunrise.Before(noon) || !d.Sunset.After(noon) {
		t.Errorf("window %v – %v does not contain %v", d.Sunrise, d.Sunset, noon)
	}
	if l := d.Sunset.Sub(d.Sunrise); l < 14*time.Hour || l > 16*time.Hour {
		t.Errorf("day length %v, want ~15h", l)
	}

	if night := loc.Daylight(time.Date(2024, 6, 20, 6, 0, 0, 0, time.UTC)); night.SunUp {
		t.Error("sun should be down at 02:00 local")
	}
}

func TestDaylightPolar(t *testing.T) {
	loc, _ := NewLocation("alert", geo.Rad(82.5), geo.Rad(-62.3), 0)
	d := loc.Daylight(time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC))
	if !d.Polar || !d.SunUp {
		t.Errorf("midsummer at 82.5°N: %+v, want polar day", d)
	}
}
