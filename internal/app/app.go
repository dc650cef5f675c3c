// Package app wires together the station, the tracked body, the alert loop,
// the HTTP server and the WebSocket hub. It owns the daemon's lifecycle and
// is the single source of truth for the current operating state.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/syzygy/internal/alert"
	"github.com/large-farva/syzygy/internal/config"
	"github.com/large-farva/syzygy/internal/console"
	"github.com/large-farva/syzygy/internal/logging"
	"github.com/large-farva/syzygy/internal/metrics"
	"github.com/large-farva/syzygy/internal/notify"
	"github.com/large-farva/syzygy/internal/observer"
	"github.com/large-farva/syzygy/internal/orbit"
	"github.com/large-farva/syzygy/internal/predict"
	"github.com/large-farva/syzygy/internal/telemetry"
	"github.com/large-farva/syzygy/internal/ws"
)

// ErrSetup marks a failure to build the station, the tracked body or the
// notifier. The daemon enters ERROR and exits non-zero.
var ErrSetup = errors.New("setup failed")

const (
	stateBooting = "BOOTING"
	logBufSize   = 500
	staleTLE     = 14 * 24 * time.Hour
)

// Options holds everything the App needs from the caller.
type Options struct {
	Handler    slog.Handler // base log handler; nil discards
	Cfg        config.Config
	ConfigPath string
	Bind       string      // overrides server.bind when set
	Quiet      bool        // suppress the console block
	Console    io.Writer   // console destination; nil means stdout when it is a terminal
	Clock      alert.Clock // nil means the wall clock
}

// App is the top-level daemon process.
type App struct {
	log        *slog.Logger
	cfg        config.Config
	configPath string
	bind       string
	server     *http.Server
	clock      alert.Clock

	startedAt time.Time
	state     atomic.Value // BOOTING, RUNNING, FIRED, ERROR

	wsHub   *ws.Hub
	metrics *metrics.Collector
	console *console.Renderer

	station       observer.Location
	stationSource string
	elements      *orbit.Elements
	tier          string
	source        *orbit.Source
	predictor     *predict.Predictor
	notifier      *notify.Transport
	loop          *alert.Loop

	lastFrame atomic.Pointer[telemetry.Frame]
	lastAlert atomic.Pointer[telemetry.Alert]

	logBufMu sync.Mutex
	logBuf   []telemetry.LogLine
}

// New creates an App in the BOOTING state. Call Run to start it.
func New(opts Options) (*App, error) {
	base := opts.Handler
	if base == nil {
		base = slog.DiscardHandler
	}
	clock := opts.Clock
	if clock == nil {
		clock = alert.WallClock{}
	}
	col, err := metrics.New(nil)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		clock:      clock,
		startedAt:  time.Now(),
		metrics:    col,
		// The hub logs through the base handler so its own failures are
		// never mirrored back into it.
		wsHub: ws.NewHub(logging.Component(slog.New(base), "ws")),
	}
	a.log = logging.Component(slog.New(logging.Mirror(base, slog.LevelInfo, a.forwardLog)), "syzygyd")
	a.state.Store(stateBooting)
	a.metrics.SetState(stateBooting)

	if err := col.GaugeFunc("ws_clients", "Connected WebSocket clients.", func() float64 {
		return float64(a.wsHub.Clients())
	}); err != nil {
		return nil, err
	}

	if !opts.Quiet && opts.Cfg.Console.Enabled {
		switch {
		case opts.Console != nil:
			a.console = console.New(opts.Console, opts.Cfg.Station.Name)
		case console.IsTerminal(os.Stdout):
			a.console = console.New(os.Stdout, opts.Cfg.Station.Name)
		}
	}
	return a, nil
}

// Run builds the pipeline, starts the HTTP server, hub and heartbeat, and
// drives the alert loop until it fires or ctx is cancelled. Setup failures
// return an error wrapping ErrSetup; FIRED and cancellation return nil.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.wsHub.Run(ctx)

	if err := a.setup(ctx); err != nil {
		a.log.Error("setup failed", "err", err)
		a.transition(string(alert.StateError))
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	defer a.closeNotifier()

	if a.cfg.Server.Enabled {
		stop, err := a.serve()
		if err != nil {
			a.transition(string(alert.StateError))
			return fmt.Errorf("%w: %w", ErrSetup, err)
		}
		defer stop()
	}

	a.transition(string(a.loop.State()))
	go a.heartbeatLoop(ctx)

	state, err := a.loop.Run(ctx)
	if err != nil && ctx.Err() != nil {
		a.log.Info("shutdown requested", "state", state, "iterations", a.loop.Iterations())
		return nil
	}
	if err != nil {
		return err
	}
	a.log.Info("alert loop finished", "state", state, "iterations", a.loop.Iterations())
	return nil
}

// setup resolves the station and target and builds the alert loop.
func (a *App) setup(ctx context.Context) error {
	loc, source, err := predict.ResolveStation(ctx, a.cfg.Station, logging.Component(a.log, "predict"))
	if err != nil {
		return fmt.Errorf("station: %w", err)
	}
	a.station, a.stationSource = loc, source
	a.log.Info("station ready",
		"name", loc.Name,
		"source", source,
		"lat", a.cfg.Station.Latitude,
		"lon", a.cfg.Station.Longitude,
		"alt", loc.Altitude,
	)

	el, tier, err := a.loadElements(ctx)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	a.elements, a.tier = el, tier

	gravity, err := orbit.ParseGravity(a.cfg.Target.Gravity)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	src, err := orbit.NewSource(el, gravity)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	a.source = src

	now := a.clock.Now()
	a.log.Info("target ready",
		"name", a.targetName(),
		"norad_id", el.SatNum,
		"epoch", el.Epoch,
		"tier", tier,
		"gravity", gravity,
	)
	if age := el.Age(now); age > staleTLE || age < -staleTLE {
		a.log.Warn("element set epoch is far from the current time, accuracy will suffer",
			"age_days", int(age.Hours()/24))
	}

	pred, err := predict.NewPredictor(el, predict.Options{
		MinElevation: a.cfg.Station.MinElevation,
		Lookahead:    time.Duration(a.cfg.Predict.LookaheadHours) * time.Hour,
		Step:         time.Duration(a.cfg.Predict.StepSeconds) * time.Second,
		Logger:       logging.Component(a.log, "predict"),
	})
	if err != nil {
		a.log.Warn("pass prediction disabled", "err", err)
	} else {
		a.predictor = pred
	}

	msg, err := notify.NewMessage(a.cfg.Notify.Message)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	var sink alert.Sink
	if a.cfg.Notify.Enabled {
		tr, err := notify.Open(notify.Config{
			Endpoint: a.cfg.Notify.Endpoint,
			Token:    a.cfg.Notify.Token,
			User:     a.cfg.Notify.User,
			Timeout:  a.cfg.Notify.Timeout,
			MaxTries: a.cfg.Notify.MaxTries,
		}, logging.Component(a.log, "notify"))
		if err != nil {
			return err
		}
		a.notifier = tr
		sink = tr
	} else {
		a.log.Info("push notifications disabled")
	}

	loop, err := alert.New(alert.Options{
		Target:       a.targetName(),
		PollInterval: a.cfg.Alert.PollInterval,
		Thresholds: alert.Thresholds{
			Azimuth:     a.cfg.Alert.AzimuthThreshold,
			Elevation:   a.cfg.Alert.ElevationThreshold,
			WrapAzimuth: a.cfg.Alert.WrapAzimuth,
		},
		Message:    msg,
		Propagator: src,
		Sky:        loc,
		Sink:       sink,
		Clock:      a.clock,
		Logger:     logging.Component(a.log, "alert"),
		Metrics:    a.metrics,
		OnFrame:    a.onFrame,
		OnAlert:    a.onAlert,
		OnState:    func(_, to alert.State) { a.transition(string(to)) },
	})
	if err != nil {
		return err
	}
	a.loop = loop
	return nil
}

// loadElements prefers inline element lines and otherwise looks the
// catalog number up in the TLE store.
func (a *App) loadElements(ctx context.Context) (*orbit.Elements, string, error) {
	t := a.cfg.Target
	if t.TLELine1 != "" || t.TLELine2 != "" {
		el, err := orbit.ParseElements(t.Name, t.TLELine1, t.TLELine2)
		return el, "config", err
	}

	store := orbit.NewStore(a.cfg.Predict.TLEURL, a.cfg.Data.Root,
		time.Duration(a.cfg.Predict.TLERefreshHours)*time.Hour)
	el, tier, err := store.Lookup(ctx, t.NoradID)
	if err != nil {
		return nil, "", err
	}
	if tier == orbit.TierStaleCache || tier == orbit.TierEmbedded {
		a.log.Warn("using fallback element set", "tier", tier, "norad_id", t.NoradID)
	}
	return el, string(tier), nil
}

func (a *App) targetName() string {
	if a.cfg.Target.Name != "" {
		return a.cfg.Target.Name
	}
	if a.elements != nil {
		return a.elements.Name
	}
	return ""
}

// serve starts the HTTP server and returns a function that shuts it down.
func (a *App) serve() (func(), error) {
	bind := a.bind
	if bind == "" {
		bind = a.cfg.Server.Bind
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}
	a.log.Info("listening", "url", "http://"+ln.Addr().String())

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}, nil
}

// Handler returns the daemon's HTTP routes wrapped in request metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/version", a.handleVersion)
	mux.HandleFunc("GET /api/system", a.handleSystem)
	mux.HandleFunc("GET /api/observation", a.handleObservation)
	mux.HandleFunc("GET /api/passes", a.handlePasses)
	mux.HandleFunc("GET /api/logs", a.handleLogs)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.Handle("/ws", a.wsHub.Handler())
	return a.metrics.Middleware(mux)
}

func (a *App) closeNotifier() {
	if a.notifier != nil {
		_ = a.notifier.Close()
	}
}

// State returns the current daemon state.
func (a *App) State() string { return a.state.Load().(string) }

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.metrics.SetState(newState)
	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, "syzygyd"),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, "syzygyd"),
				State:         a.State(),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}

func (a *App) onFrame(f telemetry.Frame) {
	a.lastFrame.Store(&f)
	a.wsHub.BroadcastJSON(f)
	if a.console != nil {
		if err := a.console.Render(f); err != nil {
			a.log.Debug("console render failed", "err", err)
		}
	}
}

func (a *App) onAlert(ev telemetry.Alert) {
	a.lastAlert.Store(&ev)
	a.wsHub.BroadcastJSON(ev)
}

// forwardLog keeps recent log lines for /api/logs and streams them to
// WebSocket clients.
func (a *App) forwardLog(e logging.Entry) {
	line := telemetry.LogLine{
		Event:   telemetry.Event{Type: telemetry.EventLog, TS: telemetry.FormatTS(e.Time), Component: e.Component},
		Level:   levelName(e.Level),
		Message: e.Message,
	}
	if len(e.Attrs) > 0 {
		line.Attrs = make(map[string]any, len(e.Attrs))
		for k, v := range e.Attrs {
			switch v := v.(type) {
			case error:
				line.Attrs[k] = v.Error()
			case fmt.Stringer:
				line.Attrs[k] = v.String()
			default:
				line.Attrs[k] = v
			}
		}
	}

	a.logBufMu.Lock()
	if len(a.logBuf) >= logBufSize {
		copy(a.logBuf, a.logBuf[1:])
		a.logBuf = a.logBuf[:len(a.logBuf)-1]
	}
	a.logBuf = append(a.logBuf, line)
	a.logBufMu.Unlock()

	a.wsHub.BroadcastJSON(line)
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
