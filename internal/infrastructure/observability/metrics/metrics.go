package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/risk-dashboard/internal/application/polling"
	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// Metrics bundles prometheus collectors used by the dashboard.
// Implements aggregator.Recorder, polling.CycleObserver and selection.StaleRecorder.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	AuthFailures       prometheus.Counter
	RateLimitDropped   prometheus.Counter

	SnapshotUpdates  *prometheus.CounterVec
	SourceFetches    *prometheus.CounterVec
	CycleDurationSec prometheus.Histogram
	StaleResponses   *prometheus.CounterVec

	DiscoveryRefreshes prometheus.Counter
	DiscoveryErrors    prometheus.Counter
}

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_dashboard_requests_total",
			Help: "Total number of dashboard HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "risk_dashboard_request_duration_seconds",
			Help:    "Dashboard request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risk_dashboard_auth_failures_total",
			Help: "Total number of auth failures.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risk_dashboard_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
		SnapshotUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_dashboard_snapshot_updates_total",
			Help: "Snapshot updates applied by the aggregator.",
		}, []string{"source", "status", "changed"}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_dashboard_source_fetches_total",
			Help: "Outcomes of polled source fetches.",
		}, []string{"source", "outcome"}),
		CycleDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_dashboard_poll_cycle_duration_seconds",
			Help:    "Duration of a poll cycle in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_dashboard_stale_responses_total",
			Help: "Dependent responses discarded because the selection changed.",
		}, []string{"source"}),
		DiscoveryRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risk_dashboard_discovery_refresh_total",
			Help: "Total number of discovery refresh attempts.",
		}),
		DiscoveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risk_dashboard_discovery_errors_total",
			Help: "Total number of discovery refresh failures.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.AuthFailures,
		m.RateLimitDropped,
		m.SnapshotUpdates,
		m.SourceFetches,
		m.CycleDurationSec,
		m.StaleResponses,
		m.DiscoveryRefreshes,
		m.DiscoveryErrors,
	)

	return m
}

func (m *Metrics) RecordUpdate(source valueobject.SourceID, status entity.SnapshotStatus, changed bool) {
	m.SnapshotUpdates.WithLabelValues(string(source), string(status), strconv.FormatBool(changed)).Inc()
}

func (m *Metrics) ObserveCycle(report polling.CycleReport) {
	m.CycleDurationSec.Observe(report.Duration.Seconds())
	for _, o := range report.Outcomes {
		m.SourceFetches.WithLabelValues(string(o.Source), string(o.Status)).Inc()
	}
}

func (m *Metrics) RecordStale(source valueobject.SourceID) {
	m.StaleResponses.WithLabelValues(string(source)).Inc()
}

// RecordDiscovery counts a discovery refresh and its failure.
func (m *Metrics) RecordDiscovery(err error) {
	m.DiscoveryRefreshes.Inc()
	if err != nil {
		m.DiscoveryErrors.Inc()
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

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch path {
	case "/ws", "/healthz", "/readyz", "/metrics",
		"/api/v1/rca", "/api/v1/rca/select", "/api/v1/rca/refresh",
		"/api/v1/ueba", "/api/v1/ueba/select", "/api/v1/ueba/refresh":
		return path
	}
	if strings.HasPrefix(path, "/api/") {
		return "/api/*"
	}
	return "other"
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
