package valueobject

import (
	"fmt"
	"math"
)

// Пороги классификации риска (шкала 0-100)
const (
	HighRiskThreshold      = 80.0
	MediumRiskThreshold    = 60.0
	AttentionRiskThreshold = 75.0
)

// RiskLevel представляет полосу серьезности риска (Value Object)
type RiskLevel int

const (
	RiskNormal RiskLevel = iota
	RiskMedium
	RiskHigh
)

// String возвращает строковое представление уровня
func (l RiskLevel) String() string {
	switch l {
	case RiskHigh:
		return "high"
	case RiskMedium:
		return "medium"
	default:
		return "normal"
	}
}

// MarshalText сериализует уровень как строку
func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText разбирает строковое представление уровня
func (l *RiskLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "high":
		*l = RiskHigh
	case "medium":
		*l = RiskMedium
	case "normal":
		*l = RiskNormal
	default:
		return fmt.Errorf("unknown risk level %q", text)
	}
	return nil
}

// ClassifyRisk относит оценку к одной из трех полос.
// Для NaN возвращает RiskNormal и ok=false.
func ClassifyRisk(score float64) (RiskLevel, bool) {
	if math.IsNaN(score) {
		return RiskNormal, false
	}

	switch {
	case score > HighRiskThreshold:
		return RiskHigh, true
	case score >= MediumRiskThreshold:
		return RiskMedium, true
	default:
		return RiskNormal, true
	}
}

// RequiresAttention отдельное правило для баннера, не зависит от ClassifyRisk
func RequiresAttention(score float64) bool {
	return score > AttentionRiskThreshold
}
