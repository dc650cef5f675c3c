package alert

import (
	"math"

	"github.com/large-farva/syzygy/internal/notify"
	"github.com/large-farva/syzygy/internal/observer"
)

// Thresholds bound the Moon/Sun separation that counts as an alignment.
// Both are degrees.
type Thresholds struct {
	Azimuth   float64
	Elevation float64
	// WrapAzimuth measures the azimuth gap the short way round, so 359.8°
	// and 0.1° are 0.3° apart instead of 359.7°.
	WrapAzimuth bool
}

// DefaultThresholds is one degree on each axis, no wrap.
var DefaultThresholds = Thresholds{Azimuth: 1.0, Elevation: 1.0}

// Decision is the outcome of one evaluation. Gaps are degrees.
type Decision struct {
	Fired        bool
	AzimuthGap   float64
	ElevationGap float64
	Message      notify.Message
}

// Evaluate compares the Moon against the Sun. Both gaps must be strictly
// below their thresholds to fire.
func Evaluate(sun, moon observer.Observation, th Thresholds, msg notify.Message) Decision {
	az := math.Abs(moon.AzimuthDeg() - sun.AzimuthDeg())
	if th.WrapAzimuth && az > 180 {
		az = 360 - az
	}
	el := math.Abs(moon.ElevationDeg() - sun.ElevationDeg())

	d := Decision{AzimuthGap: az, ElevationGap: el}
	if az < th.Azimuth && el < th.Elevation {
		d.Fired = true
		d.Message = msg
	}
	return d
}
