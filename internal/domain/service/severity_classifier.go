package service

import (
	"math"

	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// Warner минимальный интерфейс логирования для доменных сервисов
type Warner interface {
	Warn(msg string, args ...interface{})
}

// SeverityClassifier классифицирует оценки риска (Domain Service)
type SeverityClassifier struct {
	log Warner
}

// NewSeverityClassifier создает новый SeverityClassifier; log может быть nil
func NewSeverityClassifier(log Warner) *SeverityClassifier {
	return &SeverityClassifier{log: log}
}

// Classify возвращает уровень; для NaN пишет предупреждение и возвращает Normal
func (c *SeverityClassifier) Classify(score float64) valueobject.RiskLevel {
	level, ok := valueobject.ClassifyRisk(score)
	if !ok && c.log != nil {
		c.log.Warn("Risk score is not a number, classified as normal")
	}
	return level
}

// RequiresAttention правило баннера (score > 75)
func (c *SeverityClassifier) RequiresAttention(score float64) bool {
	return valueobject.RequiresAttention(score)
}

// AttentionStatus текст статуса для баннера
func (c *SeverityClassifier) AttentionStatus(score float64) string {
	if c.RequiresAttention(score) {
		return "Immediate Attention Required"
	}
	return "Normal"
}

// BarWidth ширина полосы в процентах, не больше 100
func BarWidth(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
