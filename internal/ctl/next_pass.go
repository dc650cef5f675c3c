package ctl

import (
	"fmt"
	"strings"
	"time"
)

// NextPass shows the next pass of the tracked satellite and how long until
// it rises, measured against the daemon's clock.
func NextPass(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	resp, err := fetchPasses(baseURL, 1)
	if err != nil {
		return err
	}

	var status struct {
		Time string `json:"time"`
	}
	now := time.Now()
	if getJSON(baseURL, "/api/status", &status) == nil {
		if t, err := time.Parse(time.RFC3339Nano, status.Time); err == nil {
			now = t
		}
	}

	var next *PassInfo
	countdown := time.Duration(0)
	if len(resp.Passes) > 0 {
		next = &resp.Passes[0]
		if aos, err := time.Parse(time.RFC3339, next.AOS); err == nil {
			countdown = aos.Sub(now)
		}
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"station":     resp.Station,
			"pass":        next,
			"countdown_s": int(countdown.Seconds()),
		})
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  NEXT PASS"))
	fmt.Fprintln(stdout, rule(50))
	if next == nil {
		fmt.Fprintln(stdout, colorize(dim, "  No pass within the prediction window."))
		fmt.Fprintln(stdout)
		return nil
	}

	when := "in " + formatDuration(countdown)
	if countdown <= 0 {
		when = colorize(green, "in progress")
	}
	fmt.Fprintf(stdout, "  %-14s %s (#%d)\n", colorize(dim, "Target:"), colorize(bold, next.Target), next.NoradID)
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Station:"), resp.Station)
	fmt.Fprintf(stdout, "  %-14s %s  %s\n", colorize(dim, "AOS:"), formatPassTime(next.AOS), colorize(cyan, when))
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "LOS:"), formatPassTime(next.LOS))
	fmt.Fprintf(stdout, "  %-14s %.1f° at az %.0f°\n", colorize(dim, "Max elev:"), next.MaxElev, next.MaxElevAzimuth)
	fmt.Fprintf(stdout, "  %-14s %s\n", colorize(dim, "Duration:"), formatDuration(time.Duration(next.DurationS)*time.Second))
	fmt.Fprintln(stdout)

	return nil
}
