package prometheus

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors describing the monitor itself.
// Implements port.CycleObserver.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	CycleDurationSec   prometheus.Histogram
	CycleWriteErrors   prometheus.Counter
	Devices            prometheus.Gauge
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
}

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aip_monitor_cycles_total",
			Help: "Total number of collection cycles.",
		}),
		CycleDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aip_monitor_cycle_duration_seconds",
			Help:    "Collection cycle duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		CycleWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aip_monitor_cycle_write_errors_total",
			Help: "Total number of cycles whose export failed.",
		}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aip_monitor_devices",
			Help: "Number of devices reported in the last cycle.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aip_monitor_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aip_monitor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	registry.MustRegister(
		m.CyclesTotal,
		m.CycleDurationSec,
		m.CycleWriteErrors,
		m.Devices,
		m.RequestsTotal,
		m.RequestDurationSec,
	)

	return m
}

func (m *Metrics) ObserveCycle(devices int, duration time.Duration, err error) {
	m.CyclesTotal.Inc()
	m.CycleDurationSec.Observe(duration.Seconds())
	m.Devices.Set(float64(devices))
	if err != nil {
		m.CycleWriteErrors.Inc()
	}
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// Unknown paths collapse into one label value to bound cardinality.
func normalizeRoute(path string) string {
	switch path = strings.TrimSuffix(path, "/"); path {
	case "/healthz", "/readyz", "/metrics", "/ws":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
