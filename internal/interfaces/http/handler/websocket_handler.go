package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsInfra "github.com/dreschagin/risk-dashboard/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/risk-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// originAllowlist нормализованные scheme://host; "*" разрешает любой origin
type originAllowlist map[string]struct{}

func newOriginAllowlist(origins []string) originAllowlist {
	list := make(originAllowlist, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			list[trimmed] = struct{}{}
		}
	}
	return list
}

func (l originAllowlist) allows(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(l) == 0 {
		return false
	}
	if _, ok := l["*"]; ok {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	_, ok := l[parsed.Scheme+"://"+parsed.Host]
	return ok
}

// WebSocketHandler подключает браузеры к push-обновлениям экранов.
// GET /ws?view=rca|ueba ограничивает подписку одним экраном.
type WebSocketHandler struct {
	hub        *wsInfra.Hub
	authConfig middleware.AuthConfig
	upgrader   websocket.Upgrader
	logger     *logger.Logger
}

// NewWebSocketHandler создает новый handler
func NewWebSocketHandler(
	hub *wsInfra.Hub,
	allowedOrigins []string,
	authConfig middleware.AuthConfig,
	logger *logger.Logger,
) *WebSocketHandler {
	origins := newOriginAllowlist(allowedOrigins)
	return &WebSocketHandler{
		hub:        hub,
		authConfig: authConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     origins.allows,
		},
		logger: logger,
	}
}

// HandleConnection проверяет токен и фильтр, затем передает соединение hub
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ValidateRequestAuth(r, h.authConfig); err != nil {
		h.logger.Warn("WebSocket unauthorized", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := wsInfra.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// При отказе Upgrader сам пишет ответ клиенту
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade rejected", "remote_addr", r.RemoteAddr, "error", err.Error())
		return
	}

	h.logger.Debug("WebSocket client connected", "remote_addr", r.RemoteAddr, "view", view)
	wsInfra.NewClient(h.hub, conn, view, h.logger).Serve()
}
