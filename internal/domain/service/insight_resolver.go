package service

import (
	"fmt"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// InsightKind тип контекстной подсказки
type InsightKind string

const (
	InsightNoSelection InsightKind = "no_selection"
	InsightNone        InsightKind = "no_insight"
	InsightSupplier    InsightKind = "supplier"
	InsightFailure     InsightKind = "failure"
)

// Insight результат разрешения выбранного узла
type Insight struct {
	Kind      InsightKind
	Supplier  string
	RiskScore float64
	Failure   string
	Count     int
}

// Text текст панели подсказки
func (i Insight) Text() string {
	switch i.Kind {
	case InsightSupplier:
		return fmt.Sprintf("%s contributes to approximately %.1f%% of recorded recurring failures.", i.Supplier, i.RiskScore)
	case InsightFailure:
		return fmt.Sprintf("Failure code %s appears %d times in the cause graph, indicating a recurring defect hotspot.", i.Failure, i.Count)
	case InsightNone:
		return "No additional insights available for this node. Try selecting a supplier or failure node."
	default:
		return "Click any node in the knowledge graph to view contextual RCA insights."
	}
}

// InsightResolver сопоставляет выбранный узел с табличными данными (Domain Service)
type InsightResolver struct{}

// NewInsightResolver создает новый InsightResolver
func NewInsightResolver() *InsightResolver {
	return &InsightResolver{}
}

// Resolve ищет строку по точному id. Первое совпадение выигрывает.
func (r *InsightResolver) Resolve(
	sel valueobject.Selection,
	supplierRisk []entity.SupplierRiskRow,
	heatmap []entity.FailureHeatRow,
) Insight {
	if sel.IsEmpty() || sel.Kind != valueobject.SelectionNode {
		return Insight{Kind: InsightNoSelection}
	}

	switch sel.NodeKind {
	case valueobject.NodeSupplier:
		for _, row := range supplierRisk {
			if row.Supplier == sel.ID {
				return Insight{Kind: InsightSupplier, Supplier: row.Supplier, RiskScore: row.RiskScore}
			}
		}
	case valueobject.NodeFailure:
		for _, row := range heatmap {
			if row.Failure == sel.ID {
				return Insight{Kind: InsightFailure, Failure: row.Failure, Count: row.Count}
			}
		}
	}

	return Insight{Kind: InsightNone}
}
