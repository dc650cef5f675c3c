// Package metrics exposes Prometheus collectors for the alert loop and the
// HTTP surface. Each Collector owns its registry so tests and multiple
// daemons in one process never collide.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "syzygy"

// Collector groups every syzygy metric.
type Collector struct {
	reg *prometheus.Registry

	Iterations          prometheus.Counter
	PropagationFailures prometheus.Counter
	Notifications       *prometheus.CounterVec
	Gap                 *prometheus.GaugeVec
	TargetElevation     prometheus.Gauge
	State               *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// States lists the values the state gauge can take.
var States = []string{"BOOTING", "RUNNING", "FIRED", "ERROR"}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		reg: reg,
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Alert loop iterations completed.",
		}),
		PropagationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagation_failures_total",
			Help:      "Iterations skipped because the orbit could not be propagated.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Alignment notifications by outcome.",
		}, []string{"result"}),
		Gap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "moon_sun_gap_degrees",
			Help:      "Latest absolute Moon/Sun separation per axis.",
		}, []string{"axis"}),
		TargetElevation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_elevation_degrees",
			Help:      "Latest geometric elevation of the tracked body.",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_state",
			Help:      "1 for the current alert loop state, 0 otherwise.",
		}, []string{"state"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"path", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}

	for _, col := range []prometheus.Collector{
		c.Iterations, c.PropagationFailures, c.Notifications, c.Gap,
		c.TargetElevation, c.State, c.httpRequests, c.httpDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetState marks s as the only active state.
func (c *Collector) SetState(s string) {
	for _, name := range States {
		v := 0.0
		if name == s {
			v = 1
		}
		c.State.WithLabelValues(name).Set(v)
	}
}

// SetGaps records the latest Moon/Sun separation in degrees.
func (c *Collector) SetGaps(az, el float64) {
	c.Gap.WithLabelValues("azimuth").Set(az)
	c.Gap.WithLabelValues("elevation").Set(el)
}

// GaugeFunc registers a gauge whose value is read at scrape time.
func (c *Collector) GaugeFunc(name, help string, fn func() float64) error {
	return c.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request. The
// WebSocket path is passed through untouched since hijacked connections
// cannot be wrapped.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		c.httpRequests.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		c.httpDuration.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())
	})
}
