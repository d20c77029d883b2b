package dto

import (
	"math"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// SourceStatusDTO состояние одного источника для клиента
type SourceStatusDTO struct {
	Source    string     `json:"source"`
	Status    string     `json:"status"`
	Stale     bool       `json:"stale"`
	Error     string     `json:"error,omitempty"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// FromSnapshot конвертирует снимок в DTO
func FromSnapshot(snap entity.Snapshot) SourceStatusDTO {
	out := SourceStatusDTO{
		Source: snap.Source().String(),
		Status: string(snap.Status()),
		Stale:  snap.IsStale(),
		Error:  snap.Error(),
	}
	if at := snap.FetchedAt(); !at.IsZero() {
		out.FetchedAt = &at
	}
	return out
}

// SourceStatuses собирает состояния в заданном порядке
func SourceStatuses(snaps map[valueobject.SourceID]entity.Snapshot, order []valueobject.SourceID) []SourceStatusDTO {
	out := make([]SourceStatusDTO, 0, len(order))
	for _, src := range order {
		if snap, ok := snaps[src]; ok {
			out = append(out, FromSnapshot(snap))
		}
	}
	return out
}

// BannerDTO баннер ошибки экрана
type BannerDTO struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// FirstErrorBanner баннер по первому упавшему источнику; nil если ошибок нет
func FirstErrorBanner(snaps map[valueobject.SourceID]entity.Snapshot, order []valueobject.SourceID) *BannerDTO {
	for _, src := range order {
		if snap, ok := snaps[src]; ok && snap.IsFailed() {
			return &BannerDTO{Source: src.String(), Message: snap.Error()}
		}
	}
	return nil
}

// SelectionDTO текущее выделение
type SelectionDTO struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	NodeKind string `json:"node_kind,omitempty"`
}

// FromSelection nil для пустого выделения
func FromSelection(sel valueobject.Selection) *SelectionDTO {
	if sel.IsEmpty() {
		return nil
	}
	return &SelectionDTO{
		Kind:     string(sel.Kind),
		ID:       sel.ID,
		NodeKind: string(sel.NodeKind),
	}
}

// AlertDTO представляет alert для отправки клиентам
type AlertDTO struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	AgentID   string    `json:"agent_id"`
	RiskScore float64   `json:"risk_score"`
	Message   string    `json:"message"`
}

// NewAlertDTO создает alert по сводке UEBA
func NewAlertDTO(summary entity.UEBASummary, level valueobject.RiskLevel, message string) *AlertDTO {
	return &AlertDTO{
		Timestamp: time.Now(),
		Level:     level.String(),
		AgentID:   summary.HighestRiskAgent,
		RiskScore: finite(summary.RiskScore),
		Message:   message,
	}
}

// finite заменяет NaN и Inf на 0, encoding/json их не сериализует
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
