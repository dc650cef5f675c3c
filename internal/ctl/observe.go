package ctl

import (
	"fmt"
	"strings"

	"github.com/large-farva/syzygy/internal/telemetry"
)

// Observe prints the most recent alert-loop frame: where the target, Sun
// and Moon are, and how close the Moon is to covering the Sun.
func Observe(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var f telemetry.Frame
	if err := getJSON(baseURL, "/api/observation", &f); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(f)
	}

	th := thresholds{Azimuth: 1, Elevation: 1}
	var s StatusResponse
	if getJSON(baseURL, "/api/status", &s) == nil && s.Thresholds.Azimuth > 0 {
		th = thresholds{Azimuth: s.Thresholds.Azimuth, Elevation: s.Thresholds.Elevation}
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  OBSERVATION"))
	fmt.Fprintln(stdout, rule(50))
	printFrame(f, th)
	fmt.Fprintln(stdout)
	return nil
}

type thresholds struct {
	Azimuth   float64
	Elevation float64
}

func printFrame(f telemetry.Frame, th thresholds) {
	fmt.Fprintf(stdout, "  %-12s %s  #%d  %s\n",
		colorize(dim, "Time:"), f.Time, f.Iteration, colorize(stateColor(f.State), f.State))

	if f.Error != "" {
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Error:"), colorize(red, f.Error))
	}
	if t := f.Target; t != nil {
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Target:"), colorize(bold, t.Name))
		fmt.Fprintf(stdout, "  %-12s %.4f°, %.4f°, %.1f km\n", colorize(dim, "Subpoint:"), t.Latitude, t.Longitude, t.Altitude)
		fmt.Fprintf(stdout, "  %-12s az %7.3f°  el %7.3f° (apparent %.3f°)  %s\n",
			colorize(dim, "Look:"), t.Azimuth, t.Elevation, t.ApparentElevation, horizonLabel(t.Visible))
		fmt.Fprintf(stdout, "  %-12s az %+.4f°/s  el %+.4f°/s\n", colorize(dim, "Rates:"), t.AzimuthRate, t.ElevationRate)
		fmt.Fprintf(stdout, "  %-12s %.1f km  %+.3f km/s\n", colorize(dim, "Range:"), t.Range, t.RangeRate)
	}
	if f.Sun != nil {
		fmt.Fprintf(stdout, "  %-12s az %7.3f°  el %7.3f°\n", colorize(dim, "Sun:"), f.Sun.Azimuth, f.Sun.Elevation)
	}
	if f.Moon != nil {
		fmt.Fprintf(stdout, "  %-12s az %7.3f°  el %7.3f°\n", colorize(dim, "Moon:"), f.Moon.Azimuth, f.Moon.Elevation)
	}
	if f.Sun != nil && f.Moon != nil {
		fmt.Fprintf(stdout, "  %-12s az %7.3f° [%s]\n", colorize(dim, "Gap:"), f.AzimuthGap, gapBar(f.AzimuthGap, th.Azimuth, 20))
		fmt.Fprintf(stdout, "  %-12s el %7.3f° [%s]\n", "", f.ElevationGap, gapBar(f.ElevationGap, th.Elevation, 20))
	}
}

func horizonLabel(visible bool) string {
	if visible {
		return colorize(green, "visible")
	}
	return colorize(dim, "below horizon")
}
