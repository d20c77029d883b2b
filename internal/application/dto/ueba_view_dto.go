package dto

import (
	"time"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// UEBAViewDTO модель представления экрана UEBA
type UEBAViewDTO struct {
	Timestamp     time.Time         `json:"timestamp"`
	Loading       bool              `json:"loading"`
	DetailLoading bool              `json:"detail_loading"`
	Banner        *BannerDTO        `json:"banner,omitempty"`
	Sources       []SourceStatusDTO `json:"sources"`
	Summary       *UEBASummaryDTO   `json:"summary,omitempty"`
	Ranking       []AgentRankDTO    `json:"ranking"`
	Selected      *SelectionDTO     `json:"selected,omitempty"`
	Profile       *AgentProfileDTO  `json:"profile,omitempty"`
	Explanation   *ExplanationDTO   `json:"explanation,omitempty"`
	Trend         []TrendPointDTO   `json:"trend"`
}

type UEBASummaryDTO struct {
	HighestRiskAgent  string                `json:"highest_risk_agent"`
	RiskScore         float64               `json:"risk_score"`
	Level             valueobject.RiskLevel `json:"level"`
	RequiresAttention bool                  `json:"requires_attention"`
	Status            string                `json:"status"`
}

type AgentRankDTO struct {
	AgentID   string                `json:"agent_id"`
	RiskScore float64               `json:"risk_score"`
	Level     valueobject.RiskLevel `json:"level"`
	BarWidth  float64               `json:"bar_width"`
	Selected  bool                  `json:"selected"`
}

type AgentProfileDTO struct {
	AgentID            string             `json:"agent_id,omitempty"`
	FailureRate        float64            `json:"failure_rate"`
	FailureRatePercent float64            `json:"failure_rate_percent"`
	AvgLatencyMs       float64            `json:"avg_latency_ms"`
	AvgTokens          float64            `json:"avg_tokens"`
	OffHoursCount      float64            `json:"off_hours"`
	Extra              map[string]float64 `json:"extra,omitempty"`
}

// FromAgentProfile конвертирует профиль; доля отказов также в процентах
func FromAgentProfile(p entity.AgentProfile) *AgentProfileDTO {
	var extra map[string]float64
	if len(p.Extra) > 0 {
		extra = make(map[string]float64, len(p.Extra))
		for k, v := range p.Extra {
			extra[k] = finite(v)
		}
	}
	return &AgentProfileDTO{
		AgentID:            p.AgentID,
		FailureRate:        finite(p.FailureRate),
		FailureRatePercent: finite(p.FailureRate * 100),
		AvgLatencyMs:       finite(p.AvgLatencyMs),
		AvgTokens:          finite(p.AvgTokens),
		OffHoursCount:      finite(p.OffHoursCount),
		Extra:              extra,
	}
}

type ExplanationDTO struct {
	AgentID string           `json:"agent_id"`
	Factors []RiskFactorDTO  `json:"factors"`
	Stats   *AgentProfileDTO `json:"stats"`
}

type RiskFactorDTO struct {
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
}

type TrendPointDTO struct {
	Date string  `json:"date"`
	Risk float64 `json:"risk"`
}

// FromTrend конвертирует ряд в порядке возрастания даты
func FromTrend(t entity.RiskTrend) []TrendPointDTO {
	out := make([]TrendPointDTO, 0, t.Len())
	for p := range t.Points() {
		out = append(out, TrendPointDTO{Date: p.Date, Risk: finite(p.Risk)})
	}
	return out
}

func NewUEBASummaryDTO(s entity.UEBASummary, level valueobject.RiskLevel, attention bool, status string) *UEBASummaryDTO {
	return &UEBASummaryDTO{
		HighestRiskAgent:  s.HighestRiskAgent,
		RiskScore:         finite(s.RiskScore),
		Level:             level,
		RequiresAttention: attention,
		Status:            status,
	}
}

func NewAgentRankDTO(row entity.AgentRiskRow, level valueobject.RiskLevel, barWidth float64, selected bool) AgentRankDTO {
	return AgentRankDTO{
		AgentID:   row.AgentID,
		RiskScore: finite(row.RiskScore),
		Level:     level,
		BarWidth:  barWidth,
		Selected:  selected,
	}
}
