package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dreschagin/risk-dashboard/internal/application/polling"
	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordUpdate(valueobject.SourceRCAGraph, entity.StatusReady, true)
	m.RecordUpdate(valueobject.SourceRCAGraph, entity.StatusReady, true)
	m.RecordStale(valueobject.SourceUEBATrend)
	m.ObserveCycle(polling.CycleReport{
		Duration: 20 * time.Millisecond,
		Outcomes: []polling.Outcome{
			{Source: valueobject.SourceUEBASummary, Status: polling.OutcomeOK},
			{Source: valueobject.SourceUEBARanking, Status: polling.OutcomeFailed, Error: "Bad Gateway"},
		},
	})
	m.RecordDiscovery(nil)
	m.RecordDiscovery(errors.New("api server down"))

	if got := counterValue(t, m.SnapshotUpdates.WithLabelValues("rca.graph", "ready", "true")); got != 2 {
		t.Fatalf("expected 2 snapshot updates, got %v", got)
	}
	if got := counterValue(t, m.StaleResponses.WithLabelValues("ueba.trend")); got != 1 {
		t.Fatalf("expected 1 stale response, got %v", got)
	}
	if got := counterValue(t, m.SourceFetches.WithLabelValues("ueba.ranking", "failed")); got != 1 {
		t.Fatalf("expected 1 failed fetch, got %v", got)
	}
	if counterValue(t, m.DiscoveryRefreshes) != 2 || counterValue(t, m.DiscoveryErrors) != 1 {
		t.Fatal("unexpected discovery counters")
	}
}

func TestMiddlewareLabelsRoutes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, path := range []string{"/api/v1/rca/refresh", "/api/v1/unknown/123", "/favicon.ico"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	for _, route := range []string{"/api/v1/rca/refresh", "/api/*", "other"} {
		if got := counterValue(t, m.RequestsTotal.WithLabelValues(route, http.MethodPost, "202")); got != 1 {
			t.Fatalf("route %s: expected 1 request, got %v", route, got)
		}
	}
}
