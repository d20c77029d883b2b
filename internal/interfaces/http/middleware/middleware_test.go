package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
})

func TestAuth(t *testing.T) {
	failures := 0
	h := Auth(AuthConfig{Enabled: true, BearerToken: "secret", OnFailure: func() { failures++ }}, logger.Nop())(okHandler)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "health is open", path: "/healthz", want: http.StatusOK},
		{name: "missing token", path: "/api/v1/rca", want: http.StatusUnauthorized},
		{name: "wrong token", path: "/api/v1/rca", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", path: "/api/v1/rca", header: "bearer secret", want: http.StatusOK},
		{name: "query token only for ws", path: "/api/v1/rca?token=secret", want: http.StatusUnauthorized},
		{name: "ws query token", path: "/ws?token=secret", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
	if failures != 3 {
		t.Fatalf("expected 3 auth failures, got %d", failures)
	}
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	h := Auth(AuthConfig{Enabled: false}, logger.Nop())(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ueba", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	dropped := 0
	h := RateLimit(limiter, func() { dropped++ })(okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rca", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("10.0.0.1") != http.StatusOK || send("10.0.0.1") != http.StatusOK {
		t.Fatal("burst requests must pass")
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if send("10.0.0.2") != http.StatusOK {
		t.Fatal("other client must have its own bucket")
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped request, got %d", dropped)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("unexpected ip %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("unexpected forwarded ip %q", got)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("generated request id must be propagated, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "req-42" {
		t.Fatalf("incoming request id must be kept, got %q", seen)
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(logger.NewWithOutput("error", &buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rca", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "Panic in HTTP handler") {
		t.Fatalf("panic must be logged, got %q", buf.String())
	}
}

func TestCompression(t *testing.T) {
	h := Compression(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rca", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("expected gzip encoding")
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, _ := io.ReadAll(zr)
	if string(body) != `{"status":"ok"}` {
		t.Fatalf("unexpected body %q", body)
	}

	plain := httptest.NewRecorder()
	h.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/api/v1/rca", nil))
	if plain.Header().Get("Content-Encoding") != "" {
		t.Fatal("client without gzip must get plain body")
	}
}

func TestCompressionSkipsEmptyAndBinaryResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "accepted without body", handler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}},
		{name: "binary payload", handler: func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0x1, 0x2})
		}},
		{name: "already encoded", handler: func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write([]byte("{}"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ueba", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()
			Compression(tt.handler).ServeHTTP(rec, req)

			if rec.Header().Get("Content-Encoding") == "gzip" {
				t.Fatalf("%s must not be gzipped", tt.name)
			}
		})
	}
}

func TestLoggerLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{name: "ok request", path: "/api/v1/rca", status: http.StatusOK, want: "[INFO] HTTP Request |"},
		{name: "probe", path: "/healthz", status: http.StatusOK, want: "[DEBUG] HTTP Request |"},
		{name: "client error", path: "/api/v1/ueba/select", status: http.StatusBadRequest, want: "[WARN] HTTP Request rejected"},
		{name: "server error", path: "/api/v1/rca", status: http.StatusServiceUnavailable, want: "[ERROR] HTTP Request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := Logger(logger.NewWithOutput("debug", &buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Fatalf("expected %q in %q", tt.want, out)
			}
			if !strings.Contains(out, "bytes=4") {
				t.Fatalf("response size missing: %q", out)
			}
		})
	}
}
