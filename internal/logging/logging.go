// Package logging builds the process logger. Everything logs through
// log/slog with a component attribute per package; records can also be
// mirrored to a callback so the daemon can stream them to clients.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Config controls basic logger behaviour.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json or text
	AddSource bool
}

// New constructs a slog.Logger writing to w.
func New(cfg Config, w io.Writer) *slog.Logger {
	return slog.New(NewHandler(cfg, w))
}

// NewHandler returns the text or JSON handler New would use.
func NewHandler(cfg Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component tags l with the emitting subsystem.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}

// Entry is a flattened log record handed to a Mirror callback.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Component string
	Message   string
	Attrs     map[string]any
}

// Mirror wraps next so that every record at or above min is also passed to
// fn after it has been handled. fn must not block.
func Mirror(next slog.Handler, min slog.Level, fn func(Entry)) slog.Handler {
	return &mirrorHandler{next: next, min: min, fn: fn}
}

type mirrorHandler struct {
	next  slog.Handler
	min   slog.Level
	fn    func(Entry)
	attrs []slog.Attr
	group string
}

func (h *mirrorHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l) || (h.fn != nil && l >= h.min)
}

func (h *mirrorHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}
	if r.Level < h.min || h.fn == nil {
		return err
	}

	e := Entry{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	add := func(a slog.Attr) bool {
		if a.Key == "component" {
			e.Component = a.Value.String()
			return true
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		e.Attrs[key] = a.Value.Resolve().Any()
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	h.fn(e)
	return err
}

func (h *mirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *mirrorHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}
