package service

import (
	"math"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
)

// GraphReport итог нормализации графа
type GraphReport struct {
	DuplicateNodes int
	DanglingEdges  int
	ClampedWeights int
}

// Clean true, если граф пришел без нарушений
func (r GraphReport) Clean() bool {
	return r.DuplicateNodes == 0 && r.DanglingEdges == 0 && r.ClampedWeights == 0
}

// GraphValidator приводит граф к инвариантам перед показом (Domain Service)
type GraphValidator struct{}

// NewGraphValidator создает новый GraphValidator
func NewGraphValidator() *GraphValidator {
	return &GraphValidator{}
}

// Normalize удаляет дубликаты узлов (первый выигрывает), висячие ребра
// и приводит отрицательные или NaN веса к 0
func (v *GraphValidator) Normalize(g entity.Graph) (entity.Graph, GraphReport) {
	var report GraphReport

	seen := make(map[string]struct{}, len(g.Nodes))
	nodes := make([]entity.GraphNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := seen[n.ID]; dup {
			report.DuplicateNodes++
			continue
		}
		seen[n.ID] = struct{}{}
		nodes = append(nodes, n)
	}

	edges := make([]entity.GraphEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		_, okSource := seen[e.Source]
		_, okTarget := seen[e.Target]
		if !okSource || !okTarget {
			report.DanglingEdges++
			continue
		}
		if e.Weight < 0 || math.IsNaN(e.Weight) {
			e.Weight = 0
			report.ClampedWeights++
		}
		edges = append(edges, e)
	}

	return entity.Graph{Nodes: nodes, Edges: edges}, report
}
