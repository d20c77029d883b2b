package handler

import "net/http"

// Readiness сообщает готовность зависимостей (discovery.Manager)
type Readiness interface {
	Ready() bool
}

// HealthHandler liveness и readiness probes
type HealthHandler struct {
	readiness Readiness
}

// NewHealthHandler readiness может быть nil, тогда сервис всегда готов
func NewHealthHandler(readiness Readiness) *HealthHandler {
	return &HealthHandler{readiness: readiness}
}

func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.readiness != nil && !h.readiness.Ready() {
		http.Error(w, "analytics endpoints not resolved", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
