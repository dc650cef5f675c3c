package app

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/large-farva/syzygy/internal/alert"
	"github.com/large-farva/syzygy/internal/geo"
	"github.com/large-farva/syzygy/internal/predict"
	"github.com/large-farva/syzygy/internal/telemetry"
)

const maxPassCount = 50

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	if a.State() == string(alert.StateError) {
		http.Error(w, "error\n", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	state := a.State()
	loopOK := state != string(alert.StateError)
	checks["alert_loop"] = map[string]any{"ok": loopOK, "state": state}
	allOK = allOK && loopOK

	// A stale element set still propagates, so it only degrades health.
	if a.elements != nil {
		age := a.elements.Age(a.clock.Now())
		fresh := age < staleTLE && age > -staleTLE
		checks["elements"] = map[string]any{
			"ok":       fresh,
			"tier":     a.tier,
			"age_days": int(age.Hours() / 24),
		}
		allOK = allOK && fresh
	}

	if a.tier != "config" && a.tier != "" {
		tmpPath := filepath.Join(a.cfg.Data.Root, ".healthcheck")
		if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
			checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			_ = os.Remove(tmpPath)
			checks["data_dir"] = map[string]any{"ok": true, "path": a.cfg.Data.Root}
		}
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ok": allOK, "checks": checks})
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	now := a.clock.Now()

	resp := map[string]any{
		"name":           "syzygy",
		"version":        Version,
		"state":          a.State(),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"time":           telemetry.FormatTS(now),
		"notify_enabled": a.cfg.Notify.Enabled,
		"ws_clients":     a.wsHub.Clients(),
		"thresholds": map[string]any{
			"azimuth_deg":   a.cfg.Alert.AzimuthThreshold,
			"elevation_deg": a.cfg.Alert.ElevationThreshold,
			"wrap_azimuth":  a.cfg.Alert.WrapAzimuth,
		},
	}

	if a.loop != nil {
		resp["iterations"] = a.loop.Iterations()
		resp["station"] = map[string]any{
			"name":     a.station.Name,
			"lat":      geo.Deg(a.station.Latitude),
			"lon":      geo.Deg(a.station.Longitude),
			"alt":      a.station.Altitude,
			"source":   a.stationSource,
			"daylight": a.station.Daylight(now),
		}
	}
	if el := a.elements; el != nil {
		resp["target"] = map[string]any{
			"name":           a.targetName(),
			"norad_id":       el.SatNum,
			"epoch":          el.Epoch.Format(time.RFC3339),
			"age_hours":      el.Age(now).Hours(),
			"period_minutes": el.PeriodMinutes(),
			"tier":           a.tier,
		}
	}
	if ev := a.lastAlert.Load(); ev != nil {
		resp["alert"] = ev
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleSystem(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"data_root":  a.cfg.Data.Root,
	}
	if du := diskUsage(a.cfg.Data.Root); du != nil {
		resp["disk"] = du
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleObservation returns the most recent alert-loop frame.
func (a *App) handleObservation(w http.ResponseWriter, _ *http.Request) {
	f := a.lastFrame.Load()
	if f == nil {
		jsonError(w, "no observation yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (a *App) handlePasses(w http.ResponseWriter, r *http.Request) {
	if a.predictor == nil {
		jsonError(w, "pass prediction unavailable", http.StatusServiceUnavailable)
		return
	}

	count := 5
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxPassCount {
			jsonError(w, "count must be between 1 and "+strconv.Itoa(maxPassCount), http.StatusBadRequest)
			return
		}
		count = n
	}

	passes, err := a.predictor.Passes(a.station, a.clock.Now(), count)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station": a.station.Name,
		"passes":  passesToJSON(passes),
	})
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	a.logBufMu.Lock()
	entries := make([]telemetry.LogLine, len(a.logBuf))
	copy(entries, a.logBuf)
	a.logBufMu.Unlock()

	// Apply filters.
	if level := r.URL.Query().Get("level"); level != "" {
		var filtered []telemetry.LogLine
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	if entries == nil {
		entries = []telemetry.LogLine{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

type passJSON struct {
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

func passesToJSON(passes []predict.Pass) []passJSON {
	result := make([]passJSON, len(passes))
	for i, p := range passes {
		result[i] = passJSON{
			Target:         p.Target,
			NoradID:        p.NoradID,
			AOS:            p.AOS.Format(time.RFC3339),
			LOS:            p.LOS.Format(time.RFC3339),
			MaxElev:        p.MaxElev,
			MaxElevTime:    p.MaxElevTime.Format(time.RFC3339),
			MaxElevAzimuth: p.MaxElevAzimuth,
			AOSAzimuth:     p.AOSAzimuth,
			LOSAzimuth:     p.LOSAzimuth,
			DurationS:      int(p.Duration.Seconds()),
		}
	}
	return result
}
