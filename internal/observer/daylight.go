package observer

import (
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/large-farva/syzygy/internal/geo"
)

// Daylight is the station's sunrise/sunset for one UTC calendar day.
type Daylight struct {
	Sunrise   time.Time `json:"sunrise,omitzero"`
	Sunset    time.Time `json:"sunset,omitzero"`
	SolarNoon time.Time `json:"solar_noon,omitzero"`
	SunUp     bool      `json:"sun_up"`
	Polar     bool      `json:"polar,omitempty"`
}

// Daylight returns the rise/set window for the UTC day containing t. At
// high latitudes the Sun may neither rise nor set; Polar is then true and
// SunUp reflects the Sun's elevation at t.
func (l Location) Daylight(t time.Time) Daylight {
	t = t.UTC()
	rise, set := sunrise.SunriseSunset(geo.Deg(l.Latitude), geo.Deg(l.Longitude), t.Year(), t.Month(), t.Day())

	d := Daylight{Sunrise: rise, Sunset: set}
	if rise.IsZero() || set.IsZero() {
		d.Polar = true
		d.Sunrise, d.Sunset = time.Time{}, time.Time{}
		d.SunUp = l.ObserveSun(t).Elevation > 0
		return d
	}

	d.SolarNoon = rise.Add(set.Sub(rise) / 2)
	d.SunUp = l.ObserveSun(t).Elevation > geo.Rad(-0.833)
	return d
}
