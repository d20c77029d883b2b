package entity

import "github.com/dreschagin/risk-dashboard/internal/domain/valueobject"

// RCASummary сводка анализа первопричин
type RCASummary struct {
	TopRiskSupplier        string
	MostFrequentFailure    string
	RecurringDefectPercent float64
}

// GraphNode узел графа знаний
type GraphNode struct {
	ID   string
	Kind valueobject.NodeKind
}

// GraphEdge связь между узлами с весом >= 0
type GraphEdge struct {
	Source string
	Target string
	Weight float64
}

// Graph граф причин отказов
type Graph struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

// Node ищет узел по id (первое совпадение)
func (g Graph) Node(id string) (GraphNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}

// SupplierRiskRow оценка риска поставщика 0-100
type SupplierRiskRow struct {
	Supplier  string
	RiskScore float64
}

// FailureHeatRow частота кода отказа
type FailureHeatRow struct {
	Failure string
	Count   int
}
