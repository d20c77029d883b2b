package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func analyticsBackend(failHeatmap bool) http.Handler {
	mux := http.NewServeMux()
	write := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.HandleFunc("/rca/summary", write(`{"top_risk_supplier":"Acme","most_frequent_failure":"F42","recurring_defect_percent":12}`))
	mux.HandleFunc("/rca/graph", write(`{"nodes":[{"id":"Acme","type":"supplier"}],"edges":[]}`))
	mux.HandleFunc("/rca/supplier-risk", write(`[{"supplier":"Acme","risk_score":87}]`))
	if failHeatmap {
		mux.HandleFunc("/rca/heatmap", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
	} else {
		mux.HandleFunc("/rca/heatmap", write(`[{"failure":"F42","count":9}]`))
	}
	mux.HandleFunc("/ueba/summary", write(`{"highest_risk_agent":"agent-7","risk_score":91}`))
	mux.HandleFunc("/ueba/risk-ranking", write(`[{"agent_id":"agent-7","risk_score":91}]`))
	mux.HandleFunc("/ueba/agent/agent-7", write(`{"failure_rate":0.25}`))
	mux.HandleFunc("/ueba/explain/agent-7", write(`{"agent":"agent-7","risk_factors":["High failure rate"],"stats":{}}`))
	mux.HandleFunc("/ueba/risk-trend/agent-7", write(`[{"date":"2026-01-01","risk":60}]`))
	return mux
}

func useBackend(t *testing.T, h http.Handler) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("ANALYTICS_RETRY_ATTEMPTS", "1")
	prev := flags
	flags = probeFlags{rcaURL: srv.URL, uebaURL: srv.URL, timeout: 5 * time.Second, logLevel: "error"}
	t.Cleanup(func() { flags = prev })
}

func decodeReport(t *testing.T, out *bytes.Buffer) probeReport {
	t.Helper()
	var report probeReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("invalid report json %q: %v", out.String(), err)
	}
	return report
}

func TestProbeRCAAllSourcesReady(t *testing.T) {
	useBackend(t, analyticsBackend(false))

	var out bytes.Buffer
	if err := runProbe(context.Background(), &out, "rca", ""); err != nil {
		t.Fatalf("runProbe() error = %v", err)
	}

	report := decodeReport(t, &out)
	if report.View != "rca" || len(report.Sources) != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, s := range report.Sources {
		if s.Status != "ready" {
			t.Fatalf("source %s status = %s, want ready", s.Source, s.Status)
		}
	}
}

func TestProbeRCAFailedSourceExitsNonZero(t *testing.T) {
	useBackend(t, analyticsBackend(true))

	var out bytes.Buffer
	err := runProbe(context.Background(), &out, "rca", "")

	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}

	report := decodeReport(t, &out)
	failed := 0
	for _, s := range report.Sources {
		if s.Status == "failed" {
			failed++
			if s.Error == "" {
				t.Fatalf("failed source %s must carry an error message", s.Source)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failed source, got %d", failed)
	}
}

func TestProbeUEBAWithAgent(t *testing.T) {
	useBackend(t, analyticsBackend(false))

	var out bytes.Buffer
	if err := runProbe(context.Background(), &out, "ueba", "agent-7"); err != nil {
		t.Fatalf("runProbe() error = %v", err)
	}

	report := decodeReport(t, &out)
	if report.Agent != "agent-7" || len(report.Sources) != 5 {
		t.Fatalf("expected polled and agent sources, got %+v", report.Sources)
	}
	for _, s := range report.Sources {
		if s.Status != "ready" {
			t.Fatalf("source %s status = %s (%s)", s.Source, s.Status, s.Error)
		}
	}
}

func TestProbeUEBAWithoutAgentSkipsDetails(t *testing.T) {
	useBackend(t, analyticsBackend(false))

	var out bytes.Buffer
	if err := runProbe(context.Background(), &out, "ueba", ""); err != nil {
		t.Fatalf("runProbe() error = %v", err)
	}
	if report := decodeReport(t, &out); len(report.Sources) != 2 {
		t.Fatalf("expected only polled sources, got %+v", report.Sources)
	}
}
