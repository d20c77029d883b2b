package polling

import (
	"time"

	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// OutcomeStatus итог загрузки одного источника в цикле
type OutcomeStatus string

const (
	OutcomeOK        OutcomeStatus = "ok"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeDiscarded OutcomeStatus = "discarded"
)

// Outcome результат источника
type Outcome struct {
	Source   valueobject.SourceID `json:"source"`
	Status   OutcomeStatus        `json:"status"`
	Error    string               `json:"error,omitempty"`
	Duration time.Duration        `json:"duration"`
}

// CycleReport сводка одного цикла опроса
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// Count количество исходов с указанным статусом
func (r CycleReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Outcome ищет исход источника
func (r CycleReport) Outcome(source valueobject.SourceID) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Source == source {
			return o, true
		}
	}
	return Outcome{}, false
}
