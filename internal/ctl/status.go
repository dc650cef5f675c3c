package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/large-farva/syzygy/internal/telemetry"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Time          string `json:"time"`
	NotifyEnabled bool   `json:"notify_enabled"`
	WSClients     int64  `json:"ws_clients"`
	Iterations    uint64 `json:"iterations"`
	Thresholds    struct {
		Azimuth     float64 `json:"azimuth_deg"`
		Elevation   float64 `json:"elevation_deg"`
		WrapAzimuth bool    `json:"wrap_azimuth"`
	} `json:"thresholds"`
	Station *struct {
		Name     string  `json:"name"`
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
		Alt      float64 `json:"alt"`
		Source   string  `json:"source"`
		Daylight struct {
			Sunrise string `json:"sunrise"`
			Sunset  string `json:"sunset"`
			SunUp   bool   `json:"sun_up"`
			Polar   bool   `json:"polar"`
		} `json:"daylight"`
	} `json:"station,omitempty"`
	Target *struct {
		Name          string  `json:"name"`
		NoradID       int     `json:"norad_id"`
		Epoch         string  `json:"epoch"`
		AgeHours      float64 `json:"age_hours"`
		PeriodMinutes float64 `json:"period_minutes"`
		Tier          string  `json:"tier"`
	} `json:"target,omitempty"`
	Alert *telemetry.Alert `json:"alert,omitempty"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	notify := colorize(dim, "disabled")
	if s.NotifyEnabled {
		notify = colorize(green, "enabled")
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  SYZYGY STATUS"))
	fmt.Fprintln(stdout, rule(38))
	fmt.Fprintf(stdout, "  %-12s %s %s\n", colorize(dim, "Daemon:"), s.Name, colorize(dim, s.Version))
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Fprintf(stdout, "  %-12s %d\n", colorize(dim, "Iterations:"), s.Iterations)
	fmt.Fprintf(stdout, "  %-12s %.2f° az, %.2f° el\n", colorize(dim, "Thresholds:"), s.Thresholds.Azimuth, s.Thresholds.Elevation)
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Notify:"), notify)

	if st := s.Station; st != nil {
		sun := "down"
		if st.Daylight.SunUp {
			sun = "up"
		}
		if st.Daylight.Polar {
			sun += " (polar)"
		}
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  %-12s %s (%s)\n", colorize(dim, "Station:"), st.Name, st.Source)
		fmt.Fprintf(stdout, "  %-12s %.4f, %.4f, %.0fm\n", colorize(dim, "Position:"), st.Lat, st.Lon, st.Alt)
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Sun:"), sun)
	}

	if t := s.Target; t != nil {
		age := formatDuration(time.Duration(t.AgeHours * float64(time.Hour)))
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  %-12s %s (#%d)\n", colorize(dim, "Target:"), colorize(bold, t.Name), t.NoradID)
		fmt.Fprintf(stdout, "  %-12s %s (%s old, %s)\n", colorize(dim, "Elements:"), t.Epoch, age, t.Tier)
		fmt.Fprintf(stdout, "  %-12s %.1f min\n", colorize(dim, "Period:"), t.PeriodMinutes)
	}

	if a := s.Alert; a != nil {
		delivery := colorize(green, "delivered")
		if !a.Delivered {
			delivery = colorize(red, "not delivered")
			if a.Error != "" {
				delivery += colorize(dim, " ("+a.Error+")")
			}
		}
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  %-12s %s at %s\n", colorize(dim, "Alert:"), colorize(bold, a.Message), formatClock(a.TS))
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Push:"), delivery)
	}

	fmt.Fprintf(stdout, "\n  %-12s %s\n\n", colorize(dim, "Host:"), baseURL)
	return nil
}
