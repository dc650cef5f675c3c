package ctl

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/large-farva/syzygy/internal/telemetry"
)

// LogsOptions configures the logs command.
type LogsOptions struct {
	Level string
	Limit int
	Tail  bool
	JSON  bool
}

// Logs shows recent daemon log messages, or streams them live with --tail.
func Logs(baseURL string, opts LogsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if opts.Tail {
		return Watch(baseURL, WatchOptions{
			Filter: []string{string(telemetry.EventLog)},
			JSON:   opts.JSON,
		})
	}

	params := url.Values{}
	if opts.Level != "" {
		params.Set("level", opts.Level)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/logs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Logs []telemetry.LogLine `json:"logs"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  DAEMON LOGS"))
	fmt.Fprintln(stdout, rule(70))

	if len(resp.Logs) == 0 {
		fmt.Fprintln(stdout, "  No log entries found.")
	}
	for _, entry := range resp.Logs {
		printLogLine(entry)
	}

	fmt.Fprintln(stdout)
	return nil
}

func printLogLine(l telemetry.LogLine) {
	src := ""
	if l.Component != "" {
		src = colorize(dim, "["+l.Component+"] ")
	}
	var attrs []string
	for k, v := range l.Attrs {
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, v))
	}
	tail := ""
	if len(attrs) > 0 {
		sort.Strings(attrs)
		tail = "  " + colorize(dim, strings.Join(attrs, " "))
	}
	fmt.Fprintf(stdout, "  %s %s  %s%s%s\n", colorize(dim, formatClock(l.TS)), formatLogLevel(l.Level), src, l.Message, tail)
}
