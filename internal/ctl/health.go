package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Health checks daemon liveness via GET /healthz, asking for the
// per-component breakdown.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/healthz", http.Header{"Accept": {"application/json"}})
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var detail struct {
		OK     bool                      `json:"ok"`
		Checks map[string]map[string]any `json:"checks"`
	}
	_ = json.Unmarshal(body, &detail)
	healthy := status == http.StatusOK

	if jsonOutput {
		return printJSON(map[string]any{"healthy": healthy, "url": baseURL, "checks": detail.Checks})
	}

	fmt.Fprintln(stdout)
	if healthy {
		fmt.Fprintf(stdout, "  %s  syzygyd is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Fprintf(stdout, "  %s  syzygyd returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(detail.Checks))
	for name := range detail.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := detail.Checks[name]
		mark := colorize(green, "ok  ")
		if ok, _ := c["ok"].(bool); !ok {
			mark = colorize(red, "FAIL")
		}
		var extra []string
		for _, k := range []string{"state", "tier", "age_days", "path", "error"} {
			if v, found := c[k]; found {
				extra = append(extra, fmt.Sprintf("%s=%v", k, v))
			}
		}
		fmt.Fprintf(stdout, "    %s %-12s %s\n", mark, name, colorize(dim, strings.Join(extra, " ")))
	}
	fmt.Fprintln(stdout)

	return nil
}
