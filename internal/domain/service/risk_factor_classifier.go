package service

import "strings"

// FactorSeverity оттенок фактора риска в объяснении
type FactorSeverity string

const (
	FactorSevere FactorSeverity = "severe"
	FactorMedium FactorSeverity = "medium"
	FactorInfo   FactorSeverity = "info"
)

var (
	severeKeywords = []string{"high failure", "excessive"}
	mediumKeywords = []string{"unusually", "degradation"}
)

// RiskFactorClassifier размечает текстовые причины по ключевым словам
type RiskFactorClassifier struct{}

func NewRiskFactorClassifier() *RiskFactorClassifier {
	return &RiskFactorClassifier{}
}

// Classify без учета регистра; severe проверяется раньше medium
func (c *RiskFactorClassifier) Classify(reason string) FactorSeverity {
	lower := strings.ToLower(reason)
	if containsAny(lower, severeKeywords) {
		return FactorSevere
	}
	if containsAny(lower, mediumKeywords) {
		return FactorMedium
	}
	return FactorInfo
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
