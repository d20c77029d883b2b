package entity

import "time"

// RiskGauge числовой показатель для внешней системы мониторинга
type RiskGauge struct {
	Name       string
	Value      float64
	Unit       string
	Dimensions map[string]string
	At         time.Time
}
