package handler

import (
	"context"
	"net/http"

	"github.com/dreschagin/risk-dashboard/internal/application/dto"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// UEBADashboard операции экрана UEBA, реализуется usecase.UEBADashboardUseCase
type UEBADashboard interface {
	View() (*dto.UEBAViewDTO, error)
	SelectAgent(ctx context.Context, agentID string) error
	Refresh() error
}

// UEBAHandler обрабатывает API запросы экрана UEBA
type UEBAHandler struct {
	dashboard UEBADashboard
	logger    *logger.Logger
}

// NewUEBAHandler создает новый handler
func NewUEBAHandler(dashboard UEBADashboard, logger *logger.Logger) *UEBAHandler {
	return &UEBAHandler{dashboard: dashboard, logger: logger}
}

type selectAgentRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *UEBAHandler) GetView(w http.ResponseWriter, r *http.Request) {
	view, err := h.dashboard.View()
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view); err != nil {
		h.logger.Error("Failed to write UEBA view", err)
	}
}

// SelectAgent обрабатывает клик по строке рейтинга
func (h *UEBAHandler) SelectAgent(w http.ResponseWriter, r *http.Request) {
	var req selectAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.dashboard.SelectAgent(r.Context(), req.AgentID); err != nil {
		writeUseCaseError(w, err)
		return
	}
	h.GetView(w, r)
}

func (h *UEBAHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.Refresh(); err != nil {
		writeUseCaseError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}
