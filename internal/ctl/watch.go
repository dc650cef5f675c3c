package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/syzygy/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch(ctx, baseURL, opts)
}

// wsURL rewrites an http(s) base URL to the daemon's /ws endpoint.
func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func watch(ctx context.Context, baseURL string, opts WatchOptions) error {
	target, err := wsURL(baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  %s %s\n", colorize(green, "connected"), colorize(dim, target))
		if len(opts.Filter) > 0 {
			fmt.Fprintf(stdout, "  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Fprintln(stdout, rule(50))
		fmt.Fprintln(stdout)
	}

	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var env telemetry.Event
			if err := json.Unmarshal(msg, &env); err == nil && len(filterSet) > 0 && !filterSet[string(env.Type)] {
				continue
			}

			if opts.JSON {
				fmt.Fprintln(stdout, string(msg))
			} else {
				renderEvent(msg)
			}
		}
	}()

	select {
	case <-ctx.Done():
		if !opts.JSON {
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		<-done
		return nil
	case <-done:
		return nil
	}
}

// renderEvent decodes a JSON event by type and prints it in a
// human-friendly format. Unrecognized types fall back to indented JSON.
func renderEvent(raw []byte) {
	var env telemetry.Event
	if err := json.Unmarshal(raw, &env); err != nil {
		fmt.Fprintf(stdout, "  %s\n", string(raw))
		return
	}
	ts := colorize(dim, formatClock(env.TS))

	switch env.Type {
	case telemetry.EventHeartbeat:
		var ev telemetry.Heartbeat
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		fmt.Fprintf(stdout, "  %s %s  %s  up %s\n",
			ts,
			colorize(dim, "heartbeat"),
			colorize(stateColor(ev.State), ev.State),
			colorize(dim, formatDuration(time.Duration(ev.UptimeSeconds)*time.Second)),
		)
		return

	case telemetry.EventState:
		var ev telemetry.StateTransition
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		fmt.Fprintf(stdout, "  %s %s  %s %s %s\n",
			ts,
			colorize(bold, "STATE"),
			colorize(stateColor(ev.From), ev.From),
			colorize(dim, "->"),
			colorize(stateColor(ev.To), ev.To),
		)
		return

	case telemetry.EventLog:
		var ev telemetry.LogLine
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		printLogLine(ev)
		return

	case telemetry.EventFrame:
		var ev telemetry.Frame
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		if ev.Error != "" {
			fmt.Fprintf(stdout, "  %s %s  #%d  %s\n", ts, colorize(cyan, "frame"), ev.Iteration, colorize(red, ev.Error))
			return
		}
		target := ""
		if t := ev.Target; t != nil {
			target = fmt.Sprintf("%s az %6.2f° el %6.2f°", t.Name, t.Azimuth, t.Elevation)
		}
		fmt.Fprintf(stdout, "  %s %s  #%d  %s  gap az %.3f° el %.3f°\n",
			ts, colorize(cyan, "frame"), ev.Iteration, target, ev.AzimuthGap, ev.ElevationGap)
		return

	case telemetry.EventAlert:
		var ev telemetry.Alert
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		delivery := colorize(green, "delivered")
		if !ev.Delivered {
			delivery = colorize(red, "not delivered")
			if ev.Error != "" {
				delivery += colorize(dim, " ("+ev.Error+")")
			}
		}
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  %s %s\n", ts, header("ALERT "+ev.Message))
		fmt.Fprintf(stdout, "    %-14s az %.3f°  el %.3f°\n", colorize(dim, "Gap:"), ev.AzimuthGap, ev.ElevationGap)
		fmt.Fprintf(stdout, "    %-14s %s\n", colorize(dim, "Push:"), delivery)
		fmt.Fprintln(stdout)
		return
	}

	// Unknown or malformed event: dump as indented JSON so nothing is lost.
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		fmt.Fprintf(stdout, "  %s\n", string(raw))
		return
	}
	pretty, _ := json.MarshalIndent(generic, "  ", "  ")
	fmt.Fprintf(stdout, "  %s\n", string(pretty))
}
