package entity

import (
	"cmp"
	"iter"
	"slices"
)

// UEBASummary сводка поведенческого анализа
type UEBASummary struct {
	HighestRiskAgent string
	RiskScore        float64
}

// AgentRiskRow строка рейтинга агентов
type AgentRiskRow struct {
	AgentID   string
	RiskScore float64
}

// AgentProfile поведенческий профиль агента
type AgentProfile struct {
	AgentID       string
	FailureRate   float64
	AvgLatencyMs  float64
	AvgTokens     float64
	OffHoursCount float64
	// Extra дополнительные числовые поля, которые backend может добавить
	Extra map[string]float64
}

// Explanation объяснение оценки риска агента
type Explanation struct {
	AgentID     string
	RiskFactors []string
	Stats       AgentProfile
}

// TrendPoint точка временного ряда риска
type TrendPoint struct {
	Date string
	Risk float64
}

// RiskTrend временной ряд риска агента, отсортированный по дате
type RiskTrend struct {
	agentID string
	points  []TrendPoint
}

// NewRiskTrend создает ряд; точки сортируются по возрастанию даты (ISO строки)
func NewRiskTrend(agentID string, points []TrendPoint) RiskTrend {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b TrendPoint) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return RiskTrend{agentID: agentID, points: sorted}
}

// AgentID возвращает агента ряда
func (t RiskTrend) AgentID() string {
	return t.agentID
}

// Len количество точек
func (t RiskTrend) Len() int {
	return len(t.points)
}

// Points перечисляет точки; итератор можно запускать повторно
func (t RiskTrend) Points() iter.Seq[TrendPoint] {
	return func(yield func(TrendPoint) bool) {
		for _, p := range t.points {
			if !yield(p) {
				return
			}
		}
	}
}
