package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/syzygy/internal/alert"
	"github.com/large-farva/syzygy/internal/config"
	"github.com/large-farva/syzygy/internal/orbit"
)

const (
	issLine1 = "1 25544U 98067A   15129.86961041  .00015753  00000-0  23097-3 0  9998"
	issLine2 = "2 25544  51.6464 275.3867 0006524 289.1638 208.5861 15.55704207942078"
)

// faroeConfig watches the 2015-03-20 total eclipse from Tórshavn with the
// ISS element set from seven weeks later.
func faroeConfig(t *testing.T, endpoint string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Root = t.TempDir()
	cfg.Server.Enabled = false
	cfg.Station.Name = "Torshavn"
	cfg.Station.Latitude = 62.0107
	cfg.Station.Longitude = -6.7741
	cfg.Station.Altitude = 20
	cfg.Target.TLELine1 = issLine1
	cfg.Target.TLELine2 = issLine2
	cfg.Alert.PollInterval = time.Minute
	if endpoint != "" {
		cfg.Notify.Enabled = true
		cfg.Notify.Endpoint = endpoint
		cfg.Notify.Token = "tok"
		cfg.Notify.User = "usr"
		cfg.Notify.MaxTries = 1
	}
	return cfg
}

func get(t *testing.T, h http.Handler, path string, accept string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func TestRunFiresDuringEclipse(t *testing.T) {
	var hits atomic.Int32
	var message atomic.Value
	push := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(b))
		message.Store(form.Get("message"))
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer push.Close()

	var screen bytes.Buffer
	clock := alert.NewSimClock(time.Date(2015, 3, 20, 6, 0, 0, 0, time.UTC), time.Minute)
	a, err := New(Options{
		Handler: slog.NewTextHandler(io.Discard, nil),
		Cfg:     faroeConfig(t, push.URL),
		Console: &screen,
		Clock:   clock,
	})
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, "FIRED", a.State())
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "NEARING SOLAR ECLIPSE", message.Load())

	fired := clock.Now()
	assert.True(t, fired.After(time.Date(2015, 3, 20, 7, 15, 0, 0, time.UTC)), "fired too early at %s", fired)
	assert.True(t, fired.Before(time.Date(2015, 3, 20, 7, 50, 0, 0, time.UTC)), "fired too late at %s", fired)

	assert.Contains(t, screen.String(), "\x1b[0;0H")
	assert.Equal(t, 1, strings.Count(screen.String(), "\x1b[2J"))

	h := a.Handler()

	rr, status := get(t, h, "/api/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "FIRED", status["state"])
	target := status["target"].(map[string]any)
	assert.EqualValues(t, 25544, target["norad_id"])
	assert.Equal(t, "config", target["tier"])
	alertEv := status["alert"].(map[string]any)
	assert.Equal(t, true, alertEv["delivered"])

	rr, frame := get(t, h, "/api/observation", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "FIRED", frame["state"])
	assert.Less(t, frame["azimuth_gap_deg"].(float64), 1.0)
	assert.Less(t, frame["elevation_gap_deg"].(float64), 1.0)

	rr, passes := get(t, h, "/api/passes?count=2", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.LessOrEqual(t, len(passes["passes"].([]any)), 2)

	rr, _ = get(t, h, "/api/passes?count=0", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, logs := get(t, h, "/api/logs?level=info", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var messages []string
	for _, l := range logs["logs"].([]any) {
		messages = append(messages, l.(map[string]any)["message"].(string))
	}
	assert.Contains(t, messages, "alignment detected")

	rr, _ = get(t, h, "/metrics", "")
	assert.Contains(t, rr.Body.String(), `syzygy_notifications_total{result="delivered"} 1`)
	assert.Contains(t, rr.Body.String(), `syzygy_loop_state{state="FIRED"} 1`)

	rr, _ = get(t, h, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok\n", rr.Body.String())
}

func TestRunNotifyFailureStillFires(t *testing.T) {
	push := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer push.Close()

	a, err := New(Options{
		Cfg:   faroeConfig(t, push.URL),
		Quiet: true,
		Clock: alert.NewSimClock(time.Date(2015, 3, 20, 7, 0, 0, 0, time.UTC), time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, "FIRED", a.State())

	ev := a.lastAlert.Load()
	require.NotNil(t, ev)
	assert.False(t, ev.Delivered)
	assert.NotEmpty(t, ev.Error)
}

func TestRunSetupFailure(t *testing.T) {
	cfg := faroeConfig(t, "")
	cfg.Target.TLELine2 = issLine2[:68] + "0" // bad checksum

	a, err := New(Options{Cfg: cfg, Quiet: true})
	require.NoError(t, err)

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSetup))
	assert.True(t, errors.Is(err, orbit.ErrInvalidElementSet))
	assert.Equal(t, "ERROR", a.State())

	rr, _ := get(t, a.Handler(), "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr, _ = get(t, a.Handler(), "/api/observation", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRunCancelled(t *testing.T) {
	cfg := faroeConfig(t, "")
	cfg.Alert.PollInterval = 10 * time.Millisecond
	// Far from any eclipse so the loop keeps running.
	clock := alert.NewSimClock(time.Date(2015, 5, 10, 0, 0, 0, 0, time.UTC), 0)

	a, err := New(Options{Cfg: cfg, Quiet: true, Clock: slowClock{clock}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))
	assert.Equal(t, "RUNNING", a.State())
}

// slowClock keeps simulated time but really waits, so cancellation can
// land mid-run.
type slowClock struct{ *alert.SimClock }

func (c slowClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := (alert.WallClock{}).Sleep(ctx, d); err != nil {
		return err
	}
	return c.SimClock.Sleep(ctx, d)
}

func TestHealthDetailedReportsStaleElements(t *testing.T) {
	a, err := New(Options{
		Cfg:   faroeConfig(t, ""),
		Quiet: true,
		Clock: alert.NewSimClock(time.Date(2015, 3, 20, 7, 0, 0, 0, time.UTC), time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	rr, body := get(t, a.Handler(), "/healthz", "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, false, checks["elements"].(map[string]any)["ok"])
	assert.Equal(t, true, checks["alert_loop"].(map[string]any)["ok"])
}
