package ctl

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PassesOptions controls the passes command output.
type PassesOptions struct {
	Count int
	JSON  bool
}

// PassInfo is one predicted pass as served by GET /api/passes.
type PassInfo struct {
	Target         string  `json:"target"`
	NoradID        int     `json:"norad_id"`
	AOS            string  `json:"aos"`
	LOS            string  `json:"los"`
	MaxElev        float64 `json:"max_elev"`
	MaxElevTime    string  `json:"max_elev_time"`
	MaxElevAzimuth float64 `json:"max_elev_azimuth"`
	AOSAzimuth     float64 `json:"aos_azimuth"`
	LOSAzimuth     float64 `json:"los_azimuth"`
	DurationS      int     `json:"duration_s"`
}

type passesResponse struct {
	Station string     `json:"station"`
	Passes  []PassInfo `json:"passes"`
}

// Pass prediction sweeps a day of propagation, so it gets a longer timeout
// than the default client.
var passClient = &http.Client{Timeout: 60 * time.Second}

func fetchPasses(baseURL string, count int) (passesResponse, error) {
	params := url.Values{}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	path := "/api/passes"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp passesResponse
	err := getJSONWith(passClient, baseURL, path, &resp)
	return resp, err
}

// Passes lists upcoming passes of the tracked satellite over the station.
func Passes(baseURL string, opts PassesOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	resp, err := fetchPasses(baseURL, opts.Count)
	if err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  UPCOMING PASSES"))
	fmt.Fprintf(stdout, "  %s %s\n", colorize(dim, "Station:"), resp.Station)
	fmt.Fprintln(stdout, rule(76))

	if len(resp.Passes) == 0 {
		fmt.Fprintln(stdout, colorize(dim, "  No upcoming passes found."))
		fmt.Fprintln(stdout)
		return nil
	}

	fmt.Fprintf(stdout, "  %-4s %-12s %-22s %-22s %6s  %s\n",
		colorize(dim, "#"),
		colorize(dim, "Target"),
		colorize(dim, "AOS"),
		colorize(dim, "LOS"),
		colorize(dim, "Elev"),
		colorize(dim, "Duration"),
	)
	fmt.Fprintln(stdout, rule(76))

	for i, p := range resp.Passes {
		fmt.Fprintf(stdout, "  %-4d %-12s %-22s %-22s %5.1f°  %s\n",
			i+1,
			colorize(bold, p.Target),
			formatPassTime(p.AOS),
			formatPassTime(p.LOS),
			p.MaxElev,
			formatDuration(time.Duration(p.DurationS)*time.Second),
		)
	}
	fmt.Fprintln(stdout)

	return nil
}

// formatPassTime parses an RFC3339 timestamp and returns a local time string.
func formatPassTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04 MST")
}
