// Package orbit turns a two-line element set into Earth-centred states. It
// owns the element-set decoding and validation, the SGP4 propagator wrapper
// and the TLE store that feeds it.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidElementSet is returned for TLE lines that fail the fixed-column
// layout, the checksum or the range checks.
var ErrInvalidElementSet = errors.New("invalid element set")

// tleLineLen is the fixed width of both TLE lines.
const tleLineLen = 69

// Elements is a decoded two-line element set. Angles are radians; mean
// motion is revolutions per day as published.
type Elements struct {
	Name           string
	SatNum         int
	Classification byte
	Designator     string
	Epoch          time.Time
	MeanMotionDot  float64 // rev/day²  (first derivative / 2)
	MeanMotionDDot float64 // rev/day³  (second derivative / 6)
	BStar          float64 // 1/earth radii
	ElementSet     int
	Inclination    float64
	RAAN           float64
	Eccentricity   float64
	ArgPerigee     float64
	MeanAnomaly    float64
	MeanMotion     float64
	RevNumber      int

	Line1 string
	Line2 string
}

// ParseElements decodes and validates a TLE. name is informational and may
// be empty, in which case the catalog number is used.
func ParseElements(name, line1, line2 string) (*Elements, error) {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")

	if err := checkLine(line1, '1'); err != nil {
		return nil, fmt.Errorf("%w: line 1: %v", ErrInvalidElementSet, err)
	}
	if err := checkLine(line2, '2'); err != nil {
		return nil, fmt.Errorf("%w: line 2: %v", ErrInvalidElementSet, err)
	}

	el := &Elements{Line1: line1, Line2: line2}
	if err := el.decodeLine1(line1); err != nil {
		return nil, fmt.Errorf("%w: line 1: %v", ErrInvalidElementSet, err)
	}
	if err := el.decodeLine2(line2); err != nil {
		return nil, fmt.Errorf("%w: line 2: %v", ErrInvalidElementSet, err)
	}

	el.Name = strings.TrimSpace(name)
	if el.Name == "" {
		el.Name = strconv.Itoa(el.SatNum)
	}
	return el, nil
}

// checkLine verifies width, line number and checksum.
func checkLine(line string, num byte) error {
	if len(line) != tleLineLen {
		return fmt.Errorf("length %d, expected %d", len(line), tleLineLen)
	}
	if line[0] != num || line[1] != ' ' {
		return fmt.Errorf("must start with %q", string(num)+" ")
	}
	if want, got := checksum(line), int(line[68]-'0'); want != got {
		return fmt.Errorf("checksum %d, computed %d", got, want)
	}
	return nil
}

// checksum is the modulo-10 sum of the first 68 columns, digits at face
// value and '-' as one.
func checksum(line string) int {
	cs := 0
	for i := 0; i < tleLineLen-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			cs += int(c - '0')
		case c == '-':
			cs++
		}
	}
	return cs % 10
}

func (el *Elements) decodeLine1(l string) error {
	var err error
	if el.SatNum, err = atoi(l[2:7]); err != nil {
		return fmt.Errorf("catalog number: %w", err)
	}
	el.Classification = l[7]
	el.Designator = strings.TrimSpace(l[9:17])

	if el.Epoch, err = parseEpoch(l[18:32]); err != nil {
		return err
	}
	if el.MeanMotionDot, err = atof(l[33:43]); err != nil {
		return fmt.Errorf("mean motion derivative: %w", err)
	}
	if el.MeanMotionDDot, err = impliedDecimal(l[44:52]); err != nil {
		return fmt.Errorf("mean motion second derivative: %w", err)
	}
	if el.BStar, err = impliedDecimal(l[53:61]); err != nil {
		return fmt.Errorf("bstar: %w", err)
	}
	if s := strings.TrimSpace(l[64:68]); s != "" {
		if el.ElementSet, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("element set number: %w", err)
		}
	}
	return nil
}

func (el *Elements) decodeLine2(l string) error {
	satNum, err := atoi(l[2:7])
	if err != nil {
		return fmt.Errorf("catalog number: %w", err)
	}
	if satNum != el.SatNum {
		return fmt.Errorf("catalog number %d does not match line 1 (%d)", satNum, el.SatNum)
	}

	fields := []struct {
		name string
		col  string
		dst  *float64
		rad  bool
	}{
		{"inclination", l[8:16], &el.Inclination, true},
		{"right ascension", l[17:25], &el.RAAN, true},
		{"argument of perigee", l[34:42], &el.ArgPerigee, true},
		{"mean anomaly", l[43:51], &el.MeanAnomaly, true},
		{"mean motion", l[52:63], &el.MeanMotion, false},
	}
	for _, f := range fields {
		v, err := atof(f.col)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		if f.rad {
			v *= math.Pi / 180.0
		}
		*f.dst = v
	}

	ecc, err := atof("." + strings.TrimSpace(l[26:33]))
	if err != nil {
		return fmt.Errorf("eccentricity: %w", err)
	}
	el.Eccentricity = ecc

	if s := strings.TrimSpace(l[63:68]); s != "" {
		if el.RevNumber, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("revolution number: %w", err)
		}
	}

	switch {
	case el.MeanMotion <= 0:
		return fmt.Errorf("mean motion %.8f must be positive", el.MeanMotion)
	case el.Eccentricity < 0 || el.Eccentricity >= 1:
		return fmt.Errorf("eccentricity %.7f out of range", el.Eccentricity)
	case el.Inclination < 0 || el.Inclination > math.Pi:
		return fmt.Errorf("inclination %.4f° out of range", el.Inclination*180/math.Pi)
	}
	return nil
}

// parseEpoch converts YYDDD.DDDDDDDD to UTC. Years 57-99 are 19xx.
func parseEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch %q too short", s)
	}
	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch day %q: %w", s[2:], err)
	}
	if day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %.8f out of range", day)
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((day - 1) * float64(24*time.Hour))), nil
}

// impliedDecimal decodes the "±NNNNN±E" exponent notation, e.g. " 23097-3"
// is 0.23097e-3.
func impliedDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("malformed %q", s)
	}
	mant, exp := s[:len(s)-2], s[len(s)-2:]
	m, err := strconv.ParseFloat("0."+strings.TrimSpace(mant), 64)
	if err != nil {
		return 0, err
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		return 0, err
	}
	return sign * m * math.Pow(10, float64(e)), nil
}

func atoi(s string) (int, error) { return strconv.Atoi(strings.TrimSpace(s)) }

func atof(s string) (float64, error) {
	s = strings.TrimSpace(s)
	// Columns like " .00015753" and "-.00002182" carry no leading zero.
	if strings.HasPrefix(s, "-.") {
		s = "-0" + s[1:]
	} else if strings.HasPrefix(s, "+.") {
		s = "0" + s[1:]
	}
	return strconv.ParseFloat(s, 64)
}

// Age reports how far t is from the element epoch.
func (el *Elements) Age(t time.Time) time.Duration {
	return t.Sub(el.Epoch)
}

// PeriodMinutes is the nominal orbital period.
func (el *Elements) PeriodMinutes() float64 {
	return 1440.0 / el.MeanMotion
}
