// Package alert runs the proximity loop: every tick it propagates the
// tracked body, observes it, observes the Sun and Moon, and fires a single
// notification the first time the Moon sits within the configured
// thresholds of the Sun. FIRED and ERROR are terminal.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/syzygy/internal/geo"
	"github.com/large-farva/syzygy/internal/metrics"
	"github.com/large-farva/syzygy/internal/notify"
	"github.com/large-farva/syzygy/internal/observer"
	"github.com/large-farva/syzygy/internal/orbit"
	"github.com/large-farva/syzygy/internal/telemetry"
)

// State is the loop's operating state.
type State string

const (
	StateRunning State = "RUNNING"
	StateFired   State = "FIRED"
	StateError   State = "ERROR"
)

// Terminal reports whether no further iterations happen in s.
func (s State) Terminal() bool { return s == StateFired || s == StateError }

// ErrTerminal is returned by Step once the loop has fired or failed.
var ErrTerminal = errors.New("alert loop is in a terminal state")

// Propagator yields the tracked body's state at an instant.
type Propagator interface {
	Propagate(t time.Time) (orbit.State, error)
}

// Sky reduces states and ephemerides to topocentric observations.
type Sky interface {
	Observe(s orbit.State) observer.Observation
	ObserveSun(t time.Time) observer.Observation
	ObserveMoon(t time.Time) observer.Observation
}

// Sink delivers the alignment notification.
type Sink interface {
	Send(ctx context.Context, m notify.Message) error
}

// Options configures a Loop. Propagator and Sky are required; a nil Sink
// means the alert is logged and published but not pushed anywhere.
type Options struct {
	Target       string
	PollInterval time.Duration
	Thresholds   Thresholds
	Message      notify.Message

	Propagator Propagator
	Sky        Sky
	Sink       Sink
	Clock      Clock
	Logger     *slog.Logger
	Metrics    *metrics.Collector

	OnFrame func(telemetry.Frame)
	OnAlert func(telemetry.Alert)
	OnState func(from, to State)
}

// Loop is the alert state machine. Run drives it; Step performs a single
// iteration and is exported for callers that schedule it themselves.
type Loop struct {
	opts  Options
	log   *slog.Logger
	clock Clock

	mu        sync.Mutex
	state     State
	iteration atomic.Uint64
}

// New checks opts and returns a loop in RUNNING.
func New(opts Options) (*Loop, error) {
	if opts.Propagator == nil || opts.Sky == nil {
		return nil, fmt.Errorf("alert: propagator and sky are required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Thresholds.Azimuth <= 0 || opts.Thresholds.Elevation <= 0 {
		return nil, fmt.Errorf("alert: thresholds must be positive, got %+v", opts.Thresholds)
	}
	if opts.Message.String() == "" {
		return nil, fmt.Errorf("alert: message is required")
	}
	if opts.Clock == nil {
		opts.Clock = WallClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	l := &Loop{
		opts:  opts,
		log:   opts.Logger,
		clock: opts.Clock,
		state: StateRunning,
	}
	if opts.Metrics != nil {
		opts.Metrics.SetState(string(StateRunning))
	}
	return l, nil
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Iterations returns how many iterations have started.
func (l *Loop) Iterations() uint64 { return l.iteration.Load() }

func (l *Loop) setState(to State) {
	l.mu.Lock()
	from := l.state
	l.state = to
	l.mu.Unlock()
	if from == to {
		return
	}

	l.log.Info("state transition", "from", from, "to", to)
	if l.opts.Metrics != nil {
		l.opts.Metrics.SetState(string(to))
	}
	if l.opts.OnState != nil {
		l.opts.OnState(from, to)
	}
}

// Run iterates until the loop fires or ctx is cancelled. It returns the
// final state; cancellation leaves the state unchanged and returns
// ctx.Err().
func (l *Loop) Run(ctx context.Context) (State, error) {
	l.log.Info("alert loop started",
		"target", l.opts.Target,
		"poll_interval", l.opts.PollInterval,
		"azimuth_threshold", l.opts.Thresholds.Azimuth,
		"elevation_threshold", l.opts.Thresholds.Elevation,
		"wrap_azimuth", l.opts.Thresholds.WrapAzimuth,
	)

	for {
		if err := ctx.Err(); err != nil {
			return l.State(), err
		}

		d, err := l.Step(ctx)
		switch {
		case errors.Is(err, ErrTerminal):
			return l.State(), nil
		case err != nil:
			// Per-iteration failures are already logged by Step.
		case d.Fired:
			return l.State(), nil
		}

		if err := l.clock.Sleep(ctx, l.opts.PollInterval); err != nil {
			return l.State(), err
		}
	}
}

// Step runs one iteration. A propagation failure skips the rest of the
// iteration and is returned wrapped in orbit.ErrPropagation; the loop
// stays RUNNING.
func (l *Loop) Step(ctx context.Context) (Decision, error) {
	if l.State().Terminal() {
		return Decision{}, ErrTerminal
	}

	n := l.iteration.Add(1)
	now := l.clock.Now()
	frame := telemetry.Frame{
		Event:     telemetry.Event{Type: telemetry.EventFrame, TS: telemetry.FormatTS(now), Component: "alert"},
		Iteration: n,
		Time:      telemetry.FormatTS(now),
		State:     string(StateRunning),
	}

	st, err := l.opts.Propagator.Propagate(now)
	if err != nil {
		if !errors.Is(err, orbit.ErrPropagation) {
			err = fmt.Errorf("%w: %w", orbit.ErrPropagation, err)
		}
		l.log.Warn("propagation failed, skipping iteration", "iteration", n, "time", now, "err", err)
		if l.opts.Metrics != nil {
			l.opts.Metrics.PropagationFailures.Inc()
			l.opts.Metrics.Iterations.Inc()
		}
		frame.Error = err.Error()
		l.publish(frame)
		return Decision{}, err
	}

	obs := l.opts.Sky.Observe(st)
	sun := l.opts.Sky.ObserveSun(now)
	moon := l.opts.Sky.ObserveMoon(now)
	d := Evaluate(sun, moon, l.opts.Thresholds, l.opts.Message)

	frame.Target = targetView(l.opts.Target, st, obs)
	frame.Sun = &telemetry.Look{Azimuth: sun.AzimuthDeg(), Elevation: sun.ElevationDeg()}
	frame.Moon = &telemetry.Look{Azimuth: moon.AzimuthDeg(), Elevation: moon.ElevationDeg()}
	frame.AzimuthGap = d.AzimuthGap
	frame.ElevationGap = d.ElevationGap

	if m := l.opts.Metrics; m != nil {
		m.Iterations.Inc()
		m.SetGaps(d.AzimuthGap, d.ElevationGap)
		m.TargetElevation.Set(obs.ElevationDeg())
	}
	l.log.Debug("iteration",
		"iteration", n,
		"azimuth_gap", d.AzimuthGap,
		"elevation_gap", d.ElevationGap,
		"target_elevation", obs.ElevationDeg(),
	)

	if !d.Fired {
		l.publish(frame)
		return d, nil
	}

	l.setState(StateFired)
	frame.State = string(StateFired)
	l.publish(frame)
	l.fire(ctx, d)
	return d, nil
}

// fire sends the one notification. Delivery failures are logged and
// reported but never move the loop out of FIRED.
func (l *Loop) fire(ctx context.Context, d Decision) {
	l.log.Info("alignment detected",
		"azimuth_gap", d.AzimuthGap,
		"elevation_gap", d.ElevationGap,
		"message", d.Message.String(),
	)

	ev := telemetry.Alert{
		Event:        telemetry.NewEvent(telemetry.EventAlert, "alert"),
		Message:      d.Message.String(),
		AzimuthGap:   d.AzimuthGap,
		ElevationGap: d.ElevationGap,
	}

	result := "disabled"
	if l.opts.Sink != nil {
		if err := l.opts.Sink.Send(ctx, d.Message); err != nil {
			result = "failed"
			ev.Error = err.Error()
			l.log.Error("notification failed", "err", err)
		} else {
			result = "delivered"
			ev.Delivered = true
		}
	} else {
		l.log.Warn("notification sink disabled, alert not pushed")
	}

	if l.opts.Metrics != nil {
		l.opts.Metrics.Notifications.WithLabelValues(result).Inc()
	}
	if l.opts.OnAlert != nil {
		l.opts.OnAlert(ev)
	}
}

func (l *Loop) publish(f telemetry.Frame) {
	if l.opts.OnFrame != nil {
		l.opts.OnFrame(f)
	}
}

func targetView(name string, st orbit.State, obs observer.Observation) *telemetry.Target {
	return &telemetry.Target{
		Name:              name,
		Latitude:          geo.Deg(st.Latitude),
		Longitude:         geo.Deg(st.Longitude),
		Altitude:          st.Altitude,
		Azimuth:           obs.AzimuthDeg(),
		Elevation:         obs.ElevationDeg(),
		ApparentElevation: geo.Deg(observer.ApparentElevation(obs.Elevation)),
		AzimuthRate:       geo.Deg(obs.AzimuthRate),
		ElevationRate:     geo.Deg(obs.ElevationRate),
		Range:             obs.Range,
		RangeRate:         obs.RangeRate,
		Visible:           obs.Visible(),
	}
}
