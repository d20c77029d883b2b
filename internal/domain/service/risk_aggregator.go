package service

import (
	"math"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// RiskAggregator агрегаты по рейтингу агентов (Domain Service)
type RiskAggregator struct{}

// NewRiskAggregator создает новый RiskAggregator
func NewRiskAggregator() *RiskAggregator {
	return &RiskAggregator{}
}

// CountByLevel считает агентов в каждой полосе; NaN не учитывается
func (a *RiskAggregator) CountByLevel(rows []entity.AgentRiskRow) map[valueobject.RiskLevel]int {
	counts := map[valueobject.RiskLevel]int{
		valueobject.RiskNormal: 0,
		valueobject.RiskMedium: 0,
		valueobject.RiskHigh:   0,
	}
	for _, row := range rows {
		if level, ok := valueobject.ClassifyRisk(row.RiskScore); ok {
			counts[level]++
		}
	}
	return counts
}

// Top возвращает строку с максимальным риском (первая при равенстве)
func (a *RiskAggregator) Top(rows []entity.AgentRiskRow) (entity.AgentRiskRow, bool) {
	var (
		top   entity.AgentRiskRow
		found bool
	)
	for _, row := range rows {
		if math.IsNaN(row.RiskScore) {
			continue
		}
		if !found || row.RiskScore > top.RiskScore {
			top = row
			found = true
		}
	}
	return top, found
}

// Average средний риск; ok=false для пустого набора
func (a *RiskAggregator) Average(rows []entity.AgentRiskRow) (float64, bool) {
	var (
		sum float64
		n   int
	)
	for _, row := range rows {
		if math.IsNaN(row.RiskScore) {
			continue
		}
		sum += row.RiskScore
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
