package observer

import (
	"math"

	"github.com/large-farva/syzygy/internal/geo"
)

// refractionFloor is the true elevation (degrees) below which the
// correction is held constant.
const refractionFloor = -1.0

// ApparentElevation lifts a true elevation (radians) by atmospheric
// refraction using Saemundsson's formula for standard pressure and
// temperature. The result is continuous and monotonic, never below the
// input, and converges to the input toward the zenith.
func ApparentElevation(el float64) float64 {
	return el + geo.Rad(refraction(geo.Deg(el)))
}

// refraction returns the correction in degrees for a true elevation h in
// degrees.
func refraction(h float64) float64 {
	if h < refractionFloor {
		h = refractionFloor
	}
	// 1.02·cot(h + 10.3/(h + 5.11)) arc-minutes, offset so it is zero at
	// the zenith.
	s, c := math.Sincos(geo.Rad(h + 10.3/(h+5.11)))
	r := 1.02*c/s + 0.0019279
	if r < 0 {
		r = 0
	}
	return r / 60.0
}
