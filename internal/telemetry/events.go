// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between syzygyd and its clients. The daemon
// broadcasts these directly; syzctl decodes them by Type.
package telemetry

import (
	"time"
)

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventFrame     EventType = "frame"
	EventAlert     EventType = "alert"
	EventLog       EventType = "log"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return FormatTS(time.Now())
}

// FormatTS formats t the way every event timestamp is formatted.
func FormatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewEvent stamps an envelope with the current time.
func NewEvent(typ EventType, component string) Event {
	return Event{Type: typ, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the daemon moves between operating
// states (e.g. RUNNING -> FIRED).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// Look is one topocentric direction in presentation units.
type Look struct {
	Azimuth   float64 `json:"azimuth_deg"`
	Elevation float64 `json:"elevation_deg"`
}

// Target describes the tracked body for one iteration. Rates are deg/s,
// range km, range rate km/s.
type Target struct {
	Name              string  `json:"name"`
	Latitude          float64 `json:"latitude_deg"`
	Longitude         float64 `json:"longitude_deg"`
	Altitude          float64 `json:"altitude_km"`
	Azimuth           float64 `json:"azimuth_deg"`
	Elevation         float64 `json:"elevation_deg"`
	ApparentElevation float64 `json:"apparent_elevation_deg"`
	AzimuthRate       float64 `json:"azimuth_rate_deg_s"`
	ElevationRate     float64 `json:"elevation_rate_deg_s"`
	Range             float64 `json:"range_km"`
	RangeRate         float64 `json:"range_rate_km_s"`
	Visible           bool    `json:"visible"`
}

// Frame is the snapshot produced by one alert-loop iteration. Target is
// nil when propagation failed for that iteration.
type Frame struct {
	Event
	Iteration    uint64  `json:"iteration"`
	Time         string  `json:"time"`
	State        string  `json:"state"`
	Target       *Target `json:"target,omitempty"`
	Sun          *Look   `json:"sun,omitempty"`
	Moon         *Look   `json:"moon,omitempty"`
	AzimuthGap   float64 `json:"azimuth_gap_deg"`
	ElevationGap float64 `json:"elevation_gap_deg"`
	Error        string  `json:"error,omitempty"`
}

// Alert is emitted once when the alignment condition is met.
type Alert struct {
	Event
	Message      string  `json:"message"`
	AzimuthGap   float64 `json:"azimuth_gap_deg"`
	ElevationGap float64 `json:"elevation_gap_deg"`
	Delivered    bool    `json:"delivered"`
	Error        string  `json:"error,omitempty"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}
