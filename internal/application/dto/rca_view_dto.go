package dto

import (
	"fmt"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/service"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// RCAViewDTO модель представления экрана RCA
type RCAViewDTO struct {
	Timestamp    time.Time         `json:"timestamp"`
	Loading      bool              `json:"loading"`
	Banner       *BannerDTO        `json:"banner,omitempty"`
	Sources      []SourceStatusDTO `json:"sources"`
	Summary      *RCASummaryDTO    `json:"summary,omitempty"`
	Graph        *GraphDTO         `json:"graph,omitempty"`
	Selected     *SelectionDTO     `json:"selected,omitempty"`
	Insight      InsightDTO        `json:"insight"`
	SupplierRisk []SupplierRiskDTO `json:"supplier_risk"`
	Heatmap      []FailureHeatDTO  `json:"heatmap"`
}

type RCASummaryDTO struct {
	TopRiskSupplier        string  `json:"top_risk_supplier"`
	MostFrequentFailure    string  `json:"most_frequent_failure"`
	RecurringDefectPercent float64 `json:"recurring_defect_percent"`
}

func FromRCASummary(s entity.RCASummary) *RCASummaryDTO {
	return &RCASummaryDTO{
		TopRiskSupplier:        s.TopRiskSupplier,
		MostFrequentFailure:    s.MostFrequentFailure,
		RecurringDefectPercent: finite(s.RecurringDefectPercent),
	}
}

// GraphDTO элементы графа для отрисовки
type GraphDTO struct {
	Nodes []GraphNodeDTO `json:"nodes"`
	Edges []GraphEdgeDTO `json:"edges"`
}

type GraphNodeDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type GraphEdgeDTO struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// FromGraph конвертирует уже нормализованный граф; id ребра "e-<индекс>"
func FromGraph(g entity.Graph) *GraphDTO {
	out := &GraphDTO{
		Nodes: make([]GraphNodeDTO, 0, len(g.Nodes)),
		Edges: make([]GraphEdgeDTO, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		out.Nodes = append(out.Nodes, GraphNodeDTO{ID: n.ID, Label: n.ID, Kind: n.Kind.String()})
	}
	for i, e := range g.Edges {
		out.Edges = append(out.Edges, GraphEdgeDTO{
			ID:     fmt.Sprintf("e-%d", i),
			Source: e.Source,
			Target: e.Target,
			Weight: finite(e.Weight),
		})
	}
	return out
}

// InsightDTO контекстная подсказка
type InsightDTO struct {
	Kind      string  `json:"kind"`
	Text      string  `json:"text"`
	Supplier  string  `json:"supplier,omitempty"`
	RiskScore float64 `json:"risk_score"`
	Failure   string  `json:"failure,omitempty"`
	Count     int     `json:"count"`
}

// FromInsight конвертирует результат InsightResolver
func FromInsight(i service.Insight) InsightDTO {
	return InsightDTO{
		Kind:      string(i.Kind),
		Text:      i.Text(),
		Supplier:  i.Supplier,
		RiskScore: finite(i.RiskScore),
		Failure:   i.Failure,
		Count:     i.Count,
	}
}

type SupplierRiskDTO struct {
	Supplier  string                `json:"supplier"`
	RiskScore float64               `json:"risk_score"`
	Level     valueobject.RiskLevel `json:"level"`
	BarWidth  float64               `json:"bar_width"`
}

func NewSupplierRiskDTO(row entity.SupplierRiskRow, level valueobject.RiskLevel, barWidth float64) SupplierRiskDTO {
	return SupplierRiskDTO{
		Supplier:  row.Supplier,
		RiskScore: finite(row.RiskScore),
		Level:     level,
		BarWidth:  barWidth,
	}
}

type FailureHeatDTO struct {
	Failure string `json:"failure"`
	Count   int    `json:"count"`
}

func FromHeatmap(rows []entity.FailureHeatRow) []FailureHeatDTO {
	out := make([]FailureHeatDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, FailureHeatDTO{Failure: r.Failure, Count: r.Count})
	}
	return out
}
