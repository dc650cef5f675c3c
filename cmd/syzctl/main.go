// Syzctl is the command-line client for monitoring a running syzygyd
// instance. It connects over HTTP and WebSocket to query status and stream
// live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/syzygy/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Syzygy daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,alert)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand flags like --count are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Usage = usage
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "observe":
		err = ctl.Observe(*host, *jsonOut)

	case "passes":
		opts := ctl.PassesOptions{JSON: *jsonOut}
		passFlags := pflag.NewFlagSet("passes", pflag.ContinueOnError)
		passFlags.IntVar(&opts.Count, "count", 0, "Limit number of passes shown (1-50)")
		if err := passFlags.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		err = ctl.Passes(*host, opts)

	case "next-pass":
		err = ctl.NextPass(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (info, warn, error)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		if err := logFlags.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		err = ctl.Logs(*host, opts)

	case "system-info":
		err = ctl.SystemInfo(*host, *jsonOut)

	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  syzctl - syzygy eclipse watcher CLI

  USAGE
    syzctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, station, target and alert
    health          Check daemon and component health
    version         Show CLI and daemon version information
    observe         Show the latest target, Sun and Moon look angles
    passes          List upcoming passes of the tracked satellite
    next-pass       Show the next pass and time until it rises
    logs            Show recent daemon log messages
    system-info     Show runtime and disk information

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated:
                        heartbeat, state, frame, alert, log)

  COMMAND FLAGS
    passes:
        --count N           Limit number of passes shown (1-50)

    logs:
        --level LEVEL       Filter by log level (info, warn, error)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

  EXAMPLES
    syzctl status
    syzctl --json observe
    syzctl --host http://192.168.8.1:8080 --filter state,alert watch
    syzctl passes --count 5
    syzctl logs --level warn --limit 20
    syzctl logs --tail

`)
}
