package http

import (
	"net/http"

	"github.com/dreschagin/risk-dashboard/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/risk-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/risk-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/risk-dashboard/pkg/config"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// Router настраивает маршруты приложения
type Router struct {
	mux              *http.ServeMux
	rcaHandler       *handler.RCAHandler
	uebaHandler      *handler.UEBAHandler
	healthHandler    *handler.HealthHandler
	websocketHandler *handler.WebSocketHandler
	metricsHandler   http.Handler
	metrics          *metrics.Metrics
	security         config.SecurityConfig
	rateLimit        config.RateLimitConfig
	logger           *logger.Logger
}

// NewRouter создает новый router
func NewRouter(
	rcaHandler *handler.RCAHandler,
	uebaHandler *handler.UEBAHandler,
	healthHandler *handler.HealthHandler,
	websocketHandler *handler.WebSocketHandler,
	metricsHandler http.Handler,
	m *metrics.Metrics,
	security config.SecurityConfig,
	rateLimit config.RateLimitConfig,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		rcaHandler:       rcaHandler,
		uebaHandler:      uebaHandler,
		healthHandler:    healthHandler,
		websocketHandler: websocketHandler,
		metricsHandler:   metricsHandler,
		metrics:          m,
		security:         security,
		rateLimit:        rateLimit,
		logger:           logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	rt.mux.HandleFunc("GET /healthz", rt.healthHandler.Live)
	rt.mux.HandleFunc("GET /readyz", rt.healthHandler.Ready)
	if rt.metricsHandler != nil {
		rt.mux.Handle("GET /metrics", rt.metricsHandler)
	}

	// WebSocket
	rt.mux.HandleFunc("GET /ws", rt.websocketHandler.HandleConnection)

	// RCA
	rt.mux.HandleFunc("GET /api/v1/rca", rt.rcaHandler.GetView)
	rt.mux.HandleFunc("POST /api/v1/rca/select", rt.rcaHandler.SelectNode)
	rt.mux.HandleFunc("POST /api/v1/rca/refresh", rt.rcaHandler.Refresh)

	// UEBA
	rt.mux.HandleFunc("GET /api/v1/ueba", rt.uebaHandler.GetView)
	rt.mux.HandleFunc("POST /api/v1/ueba/select", rt.uebaHandler.SelectAgent)
	rt.mux.HandleFunc("POST /api/v1/ueba/refresh", rt.uebaHandler.Refresh)

	authCfg := middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}
	var onDrop func()
	if rt.metrics != nil {
		authCfg.OnFailure = rt.metrics.AuthFailures.Inc
		onDrop = rt.metrics.RateLimitDropped.Inc
	}

	// Применяем middleware, последний добавленный выполняется первым
	var handler http.Handler = rt.mux
	handler = middleware.Compression(handler)
	handler = middleware.Auth(authCfg, rt.logger)(handler)
	handler = middleware.RateLimit(middleware.NewIPRateLimiter(rt.rateLimit.RPS, rt.rateLimit.Burst), onDrop)(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.Recovery(rt.logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
