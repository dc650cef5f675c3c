package observer

import (
	"math"
	"time"

	"github.com/large-farva/syzygy/internal/geo"
)

const (
	au       = 149597870691.0 // meters
	arcsec   = math.Pi / 180.0 / 3600.0
	earthRad = geo.WGS84A
)

// fundamentalArgs returns the Delaunay arguments l, l', F, D, Ω (radians,
// IAU 1980) for t Julian centuries from J2000.
func fundamentalArgs(t float64) [5]float64 {
	fc := [5][5]float64{
		{134.96340251, 1717915923.2178, 31.8792, 0.051635, -0.00024470},
		{357.52910918, 129596581.0481, -0.5532, 0.000136, -0.00001149},
		{93.27209062, 1739527262.8478, -12.7512, -0.001037, 0.00000417},
		{297.85019547, 1602961601.2090, -6.3706, 0.006593, -0.00003169},
		{125.04455501, -6962890.2665, 7.4722, 0.007702, -0.00005939},
	}
	tt := [4]float64{t, t * t, t * t * t, t * t * t * t}

	var f [5]float64
	for i := range fc {
		v := fc[i][0] * 3600.0
		for j := 0; j < 4; j++ {
			v += fc[i][j+1] * tt[j]
		}
		f[i] = math.Mod(v*arcsec, 2*math.Pi)
	}
	return f
}

func centuries(t time.Time) float64 {
	return (geo.JulianDate(t) - geo.J2000) / 36525.0
}

// obliquity of the ecliptic in degrees.
func obliquity(t float64) float64 {
	return 23.439291 - 0.0130042*t
}

// SunInertial returns the Sun's geocentric equatorial position of date in
// meters. Mean anomaly plus the two leading equation-of-centre terms; good
// to about 0.01°.
func SunInertial(tm time.Time) geo.Vector {
	t := centuries(tm)
	sinE, cosE := math.Sincos(geo.Rad(obliquity(t)))

	ms := geo.Rad(357.5277233 + 35999.05034*t)
	ls := geo.Rad(280.460 + 36000.770*t + 1.914666471*math.Sin(ms) + 0.019994643*math.Sin(2*ms))
	rs := au * (1.000140612 - 0.016708617*math.Cos(ms) - 0.000139589*math.Cos(2*ms))

	sinL, cosL := math.Sincos(ls)
	return geo.Vector{
		X: rs * cosL,
		Y: rs * cosE * sinL,
		Z: rs * sinE * sinL,
	}
}

// MoonInertial returns the Moon's geocentric equatorial position of date in
// meters from the principal periodic terms in longitude, latitude and
// parallax. Good to a few tenths of a degree.
func MoonInertial(tm time.Time) geo.Vector {
	t := centuries(tm)
	f := fundamentalArgs(t)
	sinE, cosE := math.Sincos(geo.Rad(obliquity(t)))

	lm := 218.32 + 481267.883*t +
		6.29*math.Sin(f[0]) - 1.27*math.Sin(f[0]-2*f[3]) +
		0.66*math.Sin(2*f[3]) + 0.21*math.Sin(2*f[0]) -
		0.19*math.Sin(f[1]) - 0.11*math.Sin(2*f[2])
	pm := 5.13*math.Sin(f[2]) + 0.28*math.Sin(f[0]+f[2]) -
		0.28*math.Sin(f[2]-f[0]) - 0.17*math.Sin(f[2]-2*f[3])
	hp := 0.9508 + 0.0518*math.Cos(f[0]) + 0.0095*math.Cos(f[0]-2*f[3]) +
		0.0078*math.Cos(2*f[3]) + 0.0028*math.Cos(2*f[0])
	rm := earthRad / math.Sin(geo.Rad(hp))

	sinL, cosL := math.Sincos(geo.Rad(lm))
	sinP, cosP := math.Sincos(geo.Rad(pm))
	return geo.Vector{
		X: rm * cosP * cosL,
		Y: rm * (cosE*cosP*sinL - sinE*sinP),
		Z: rm * (sinE*cosP*sinL + cosE*sinP),
	}
}

// SunECEF is SunInertial rotated into the Earth-fixed frame.
func SunECEF(t time.Time) geo.Vector {
	p, _ := geo.InertialToECEF(SunInertial(t), geo.Vector{}, geo.GMST(t))
	return p
}

// MoonECEF is MoonInertial rotated into the Earth-fixed frame.
func MoonECEF(t time.Time) geo.Vector {
	p, _ := geo.InertialToECEF(MoonInertial(t), geo.Vector{}, geo.GMST(t))
	return p
}
