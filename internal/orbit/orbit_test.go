package orbit

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/akhenakh/sgp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/syzygy/internal/geo"
)

const (
	issLine1 = "1 25544U 98067A   15129.86961041  .00015753  00000-0  23097-3 0  9998"
	issLine2 = "2 25544  51.6464 275.3867 0006524 289.1638 208.5861 15.55704207942078"

	// Vallado "Revisiting Spacetrack Report #3" test case 00005.
	valladoLine1 = "1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753"
	valladoLine2 = "2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667"
)

func TestParseElementsISS(t *testing.T) {
	el, err := ParseElements("ISS (ZARYA)", issLine1, issLine2)
	require.NoError(t, err)

	assert.Equal(t, "ISS (ZARYA)", el.Name)
	assert.Equal(t, 25544, el.SatNum)
	assert.Equal(t, byte('U'), el.Classification)
	assert.Equal(t, "98067A", el.Designator)
	assert.Equal(t, 999, el.ElementSet)
	assert.Equal(t, 94207, el.RevNumber)

	wantEpoch := time.Date(2015, 5, 9, 20, 52, 14, 339424000, time.UTC)
	assert.WithinDuration(t, wantEpoch, el.Epoch, time.Millisecond)

	assert.InDelta(t, 0.00015753, el.MeanMotionDot, 1e-12)
	assert.InDelta(t, 0.0, el.MeanMotionDDot, 1e-12)
	assert.InDelta(t, 0.23097e-3, el.BStar, 1e-12)
	assert.InDelta(t, 51.6464*math.Pi/180, el.Inclination, 1e-12)
	assert.InDelta(t, 275.3867*math.Pi/180, el.RAAN, 1e-12)
	assert.InDelta(t, 0.0006524, el.Eccentricity, 1e-12)
	assert.InDelta(t, 289.1638*math.Pi/180, el.ArgPerigee, 1e-12)
	assert.InDelta(t, 208.5861*math.Pi/180, el.MeanAnomaly, 1e-12)
	assert.InDelta(t, 15.55704207, el.MeanMotion, 1e-9)
	assert.InDelta(t, 92.56, el.PeriodMinutes(), 0.01)
}

func TestParseElementsDefaultsName(t *testing.T) {
	el, err := ParseElements("  ", issLine1, issLine2)
	require.NoError(t, err)
	assert.Equal(t, "25544", el.Name)
}

func TestParseElementsTrailingWhitespace(t *testing.T) {
	_, err := ParseElements("", issLine1+"  \r\n", issLine2+"\n")
	assert.NoError(t, err)
}

func TestParseElementsRejects(t *testing.T) {
	replace := func(s string, i int, c byte) string {
		b := []byte(s)
		b[i] = c
		return string(b)
	}

	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"short line 1", issLine1[:68], issLine2},
		{"long line 2", issLine1, issLine2 + "0"},
		{"bad checksum line 1", replace(issLine1, 68, '9'), issLine2},
		{"bad checksum line 2", issLine1, replace(issLine2, 68, '0')},
		{"swapped lines", issLine2, issLine1},
		{"empty", "", ""},
		// Catalog number changed and checksum repaired.
		{"catalog mismatch", issLine1, replace(replace(issLine2, 6, '5'), 68, '9')},
		// Mean motion digit replaced by a letter; letters do not count.
		{"non-numeric field", issLine1, replace(replace(issLine2, 53, 'X'), 68, '3')},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := ParseElements("x", tt.line1, tt.line2)
			assert.Nil(t, el)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidElementSet), "got %v", err)
		})
	}
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, 8, checksum(issLine1))
	assert.Equal(t, 8, checksum(issLine2))
	assert.Equal(t, 3, checksum(valladoLine1))
	assert.Equal(t, 7, checksum(valladoLine2))
}

func TestImpliedDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{" 23097-3", 0.23097e-3},
		{"-11606-4", -0.11606e-4},
		{" 00000-0", 0},
		{"+12345+1", 1.2345},
		{"        ", 0},
	}
	for _, tt := range tests {
		got, err := impliedDecimal(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-15, tt.in)
	}
}

func TestParseEpochCentury(t *testing.T) {
	e, err := parseEpoch("57001.00000000")
	require.NoError(t, err)
	assert.Equal(t, 1957, e.Year())

	e, err = parseEpoch("56001.50000000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2056, 1, 1, 12, 0, 0, 0, time.UTC), e)
}

func newISSSource(t *testing.T) *Source {
	t.Helper()
	el, err := ParseElements("ISS (ZARYA)", issLine1, issLine2)
	require.NoError(t, err)
	src, err := NewSource(el, GravityWGS72)
	require.NoError(t, err)
	return src
}

func TestNewSourceNil(t *testing.T) {
	_, err := NewSource(nil, GravityWGS72)
	assert.ErrorIs(t, err, ErrInvalidElementSet)
}

// At its own epoch SGP4 must reproduce the published reference state.
func TestPropagateValladoEpoch(t *testing.T) {
	el, err := ParseElements("", valladoLine1, valladoLine2)
	require.NoError(t, err)
	src, err := NewSource(el, GravityWGS72)
	require.NoError(t, err)

	st, err := src.Propagate(el.Epoch)
	require.NoError(t, err)

	const tolKm = 0.01
	assert.InDelta(t, 7022.46529266, st.Position.X, tolKm)
	assert.InDelta(t, -1400.08296755, st.Position.Y, tolKm)
	assert.InDelta(t, 0.03995155, st.Position.Z, tolKm)

	const tolKmS = 1e-5
	assert.InDelta(t, 1.893841015, st.Velocity.X, tolKmS)
	assert.InDelta(t, 6.405893759, st.Velocity.Y, tolKmS)
	assert.InDelta(t, 4.534807250, st.Velocity.Z, tolKmS)
}

// go-satellite keeps only the whole seconds of the element epoch.
func TestNewSourceEpochSkew(t *testing.T) {
	src := newISSSource(t)
	assert.InDelta(t, 339424*time.Microsecond, src.skew, float64(time.Millisecond))

	rec, err := recordEpoch(src.Elements())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 5, 9, 20, 52, 14, 0, time.UTC), rec)
}

func TestRecordEpochCentury(t *testing.T) {
	el, err := ParseElements("", valladoLine1, valladoLine2)
	require.NoError(t, err)
	rec, err := recordEpoch(el)
	require.NoError(t, err)
	// Day 179.78495062 of 2000 is 27 June, 18:50:19.73.
	assert.Equal(t, time.Date(2000, 6, 27, 18, 50, 19, 0, time.UTC), rec)
}

// An independent SGP4 implementation, which keeps the full epoch, must
// agree with the propagated state away from whole seconds as well.
func TestPropagateMatchesIndependentSGP4(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
		offsets      []time.Duration
	}{
		{"iss", issLine1, issLine2, []time.Duration{0, 250 * time.Millisecond, 47 * time.Minute, 3*time.Hour + 1500*time.Millisecond}},
		{"vallado 00005", valladoLine1, valladoLine2, []time.Duration{0, 6 * time.Hour, 12*time.Hour + 400*time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := ParseElements("", tt.line1, tt.line2)
			require.NoError(t, err)
			src, err := NewSource(el, GravityWGS72)
			require.NoError(t, err)
			ref, err := sgp4.ParseTLE(tt.line1 + "\n" + tt.line2)
			require.NoError(t, err)

			for _, off := range tt.offsets {
				at := el.Epoch.Add(off)
				st, err := src.Propagate(at)
				require.NoError(t, err)
				want, err := ref.FindPositionAtTime(at)
				require.NoError(t, err)

				wantPos := geo.Vector{X: want.Position.X, Y: want.Position.Y, Z: want.Position.Z}
				miss := st.Position.Sub(wantPos).Norm()
				assert.Less(t, miss, 0.1, "%s: %.4f km apart", off, miss)
			}
		})
	}
}

func TestPropagateISSEpoch(t *testing.T) {
	src := newISSSource(t)
	st, err := src.Propagate(src.Elements().Epoch)
	require.NoError(t, err)

	r := st.Position.Norm()
	assert.True(t, r > 6760 && r < 6800, "radius %.1f km", r)
	assert.True(t, st.Altitude > 370 && st.Altitude < 430, "altitude %.1f km", st.Altitude)
	assert.LessOrEqual(t, math.Abs(st.Latitude), 52.0*math.Pi/180)

	v := st.Velocity.Norm()
	assert.InDelta(t, 7.66, v, 0.05)

	// ECEF is meters and keeps the inertial radius.
	assert.InDelta(t, r*1000, st.PositionECEF.Norm(), 1e-3)
}

func TestPropagateIdempotent(t *testing.T) {
	src := newISSSource(t)
	at := time.Date(2015, 5, 10, 3, 17, 42, 250000000, time.UTC)

	a, err := src.Propagate(at)
	require.NoError(t, err)
	b, err := src.Propagate(at)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// Sub-second carry-forward must land within meters of the next whole second.
func TestPropagateSubSecondContinuity(t *testing.T) {
	src := newISSSource(t)
	base := time.Date(2015, 5, 10, 0, 0, 0, 0, time.UTC)

	almost, err := src.Propagate(base.Add(999 * time.Millisecond))
	require.NoError(t, err)
	next, err := src.Propagate(base.Add(time.Second))
	require.NoError(t, err)

	gap := almost.Position.Sub(next.Position).Norm()
	assert.Less(t, gap, 0.05, "gap %.4f km", gap)
}

func TestCheckRadius(t *testing.T) {
	tests := []struct {
		name string
		pos  geo.Vector
		ok   bool
	}{
		{"leo", geo.Vector{X: 6778}, true},
		{"geo", geo.Vector{Y: 42164}, true},
		{"inside earth", geo.Vector{Z: 6000}, false},
		{"zero", geo.Vector{}, false},
		{"molniya apogee", geo.Vector{X: 46000, Z: 20000}, true},
		{"high apogee", geo.Vector{X: 60000}, true},
		{"nan", geo.Vector{X: math.NaN(), Y: 7000}, false},
		{"inf", geo.Vector{X: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkState(tt.pos, geo.Vector{Y: 7.5})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseGravity(t *testing.T) {
	g, err := ParseGravity("")
	require.NoError(t, err)
	assert.Equal(t, GravityWGS72, g)

	g, err = ParseGravity(" WGS84 ")
	require.NoError(t, err)
	assert.Equal(t, GravityWGS84, g)

	_, err = ParseGravity("egm96")
	assert.Error(t, err)
}
