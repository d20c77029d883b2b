package handler

import (
	"context"
	"net/http"

	"github.com/dreschagin/risk-dashboard/internal/application/dto"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// RCADashboard операции экрана RCA, реализуется usecase.RCADashboardUseCase
type RCADashboard interface {
	View() (*dto.RCAViewDTO, error)
	SelectNode(ctx context.Context, nodeID string) error
	Refresh() error
}

// RCAHandler обрабатывает API запросы экрана RCA
type RCAHandler struct {
	dashboard RCADashboard
	logger    *logger.Logger
}

// NewRCAHandler создает новый handler
func NewRCAHandler(dashboard RCADashboard, logger *logger.Logger) *RCAHandler {
	return &RCAHandler{dashboard: dashboard, logger: logger}
}

type selectNodeRequest struct {
	NodeID string `json:"node_id"`
}

// GetView возвращает текущую модель экрана
func (h *RCAHandler) GetView(w http.ResponseWriter, r *http.Request) {
	view, err := h.dashboard.View()
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view); err != nil {
		h.logger.Error("Failed to write RCA view", err)
	}
}

// SelectNode обрабатывает клик по узлу графа
func (h *RCAHandler) SelectNode(w http.ResponseWriter, r *http.Request) {
	var req selectNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Контекст запроса не ограничивает загрузки, их жизнь определяет экран
	if err := h.dashboard.SelectNode(r.Context(), req.NodeID); err != nil {
		writeUseCaseError(w, err)
		return
	}
	h.GetView(w, r)
}

// Refresh запускает внеочередной цикл опроса
func (h *RCAHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.Refresh(); err != nil {
		writeUseCaseError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}
