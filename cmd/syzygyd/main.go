// Syzygyd tracks a satellite from a fixed or GPS-derived station and sends a
// single push notification when the Moon closes on the Sun, an eclipse in
// progress.
//
// It loads configuration, starts the HTTP/WebSocket server, and runs the
// alert loop until it fires. Shutdown is handled gracefully on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/syzygy/internal/alert"
	"github.com/large-farva/syzygy/internal/app"
	"github.com/large-farva/syzygy/internal/config"
	"github.com/large-farva/syzygy/internal/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("syzygyd", pflag.ContinueOnError)
	var (
		configPath   = flags.StringP("config", "c", "", "Path to config TOML (defaults and SYZYGY_* env only when empty)")
		bind         = flags.String("bind", "", "HTTP bind address (overrides server.bind)")
		quiet        = flags.BoolP("quiet", "q", false, "Do not draw the console block")
		simulateFrom = flags.String("simulate-from", "", "Replay from this RFC 3339 instant instead of the wall clock")
		simulateStep = flags.Duration("simulate-step", 0, "Simulated time per poll when replaying (default: the poll interval)")
		showVersion  = flags.Bool("version", false, "Print version and exit")
	)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitUsage
	}
	if *showVersion {
		fmt.Printf("syzygyd %s (%s, built %s)\n", app.Version, app.GoVersion, app.BuiltAt)
		return exitOK
	}

	var clock alert.Clock
	if *simulateFrom != "" {
		start, err := time.Parse(time.RFC3339, *simulateFrom)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: --simulate-from:", err)
			return exitUsage
		}
		clock = alert.NewSimClock(start, *simulateStep)
	} else if *simulateStep != 0 {
		fmt.Fprintln(os.Stderr, "error: --simulate-step requires --simulate-from")
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		return exitError
	}

	handler := logging.NewHandler(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, os.Stderr)
	logger := slog.New(handler).With("component", "main")

	a, err := app.New(app.Options{
		Handler:    handler,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
		Quiet:      *quiet,
		Clock:      clock,
	})
	if err != nil {
		logger.Error("init failed", "err", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("syzygyd failed", "err", err)
		return exitError
	}
	logger.Info("stopped", "state", a.State())
	return exitOK
}
