package analytics

import (
	"fmt"
	"math"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// Wire formats of the analytics backend.

type rcaSummaryWire struct {
	TopRiskSupplier        string  `json:"top_risk_supplier"`
	MostFrequentFailure    string  `json:"most_frequent_failure"`
	RecurringDefectPercent float64 `json:"recurring_defect_percent"`
}

type graphWire struct {
	Nodes []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"nodes"`
	Edges []struct {
		Source string  `json:"source"`
		Target string  `json:"target"`
		Weight float64 `json:"weight"`
	} `json:"edges"`
}

type supplierRiskWire struct {
	Supplier  string  `json:"supplier"`
	RiskScore float64 `json:"risk_score"`
}

type heatmapWire struct {
	Failure string  `json:"failure"`
	Count   float64 `json:"count"`
}

type uebaSummaryWire struct {
	HighestRiskAgent string  `json:"highest_risk_agent"`
	RiskScore        float64 `json:"risk_score"`
}

type agentRiskWire struct {
	AgentID   string  `json:"agent_id"`
	RiskScore float64 `json:"risk_score"`
}

// profileWire сохраняет все поля, включая неизвестные
type profileWire map[string]any

type explanationWire struct {
	Agent       string      `json:"agent"`
	RiskFactors []string    `json:"risk_factors"`
	Stats       profileWire `json:"stats"`
}

type trendPointWire struct {
	Date string  `json:"date"`
	Risk float64 `json:"risk"`
}

func (w rcaSummaryWire) toEntity() entity.RCASummary {
	return entity.RCASummary{
		TopRiskSupplier:        w.TopRiskSupplier,
		MostFrequentFailure:    w.MostFrequentFailure,
		RecurringDefectPercent: w.RecurringDefectPercent,
	}
}

func (w graphWire) toEntity() entity.Graph {
	g := entity.Graph{
		Nodes: make([]entity.GraphNode, 0, len(w.Nodes)),
		Edges: make([]entity.GraphEdge, 0, len(w.Edges)),
	}
	for _, n := range w.Nodes {
		g.Nodes = append(g.Nodes, entity.GraphNode{ID: n.ID, Kind: valueobject.ParseNodeKind(n.Type)})
	}
	for _, e := range w.Edges {
		g.Edges = append(g.Edges, entity.GraphEdge{Source: e.Source, Target: e.Target, Weight: e.Weight})
	}
	return g
}

func supplierRiskToEntity(rows []supplierRiskWire) []entity.SupplierRiskRow {
	out := make([]entity.SupplierRiskRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.SupplierRiskRow{Supplier: r.Supplier, RiskScore: r.RiskScore})
	}
	return out
}

func heatmapToEntity(rows []heatmapWire) ([]entity.FailureHeatRow, error) {
	out := make([]entity.FailureHeatRow, 0, len(rows))
	for _, r := range rows {
		// >= MaxInt: float64(MaxInt) равен 2^63 и уже не помещается в int
		if r.Count < 0 || r.Count >= math.MaxInt || r.Count != math.Trunc(r.Count) {
			return nil, fmt.Errorf("failure %q: invalid count %v", r.Failure, r.Count)
		}
		out = append(out, entity.FailureHeatRow{Failure: r.Failure, Count: int(r.Count)})
	}
	return out, nil
}

func (w uebaSummaryWire) toEntity() entity.UEBASummary {
	return entity.UEBASummary{HighestRiskAgent: w.HighestRiskAgent, RiskScore: w.RiskScore}
}

func rankingToEntity(rows []agentRiskWire) []entity.AgentRiskRow {
	out := make([]entity.AgentRiskRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.AgentRiskRow{AgentID: r.AgentID, RiskScore: r.RiskScore})
	}
	return out
}

// toEntity раскладывает известные поля, прочие числовые попадают в Extra
func (w profileWire) toEntity(agentID string) entity.AgentProfile {
	p := entity.AgentProfile{AgentID: agentID}
	for key, raw := range w {
		value, ok := raw.(float64)
		if !ok {
			if key == "agent_id" || key == "agent" {
				if s, isStr := raw.(string); isStr && s != "" {
					p.AgentID = s
				}
			}
			continue
		}
		switch key {
		case "failure_rate":
			p.FailureRate = value
		case "avg_latency":
			p.AvgLatencyMs = value
		case "avg_tokens":
			p.AvgTokens = value
		case "off_hours":
			p.OffHoursCount = value
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]float64)
			}
			p.Extra[key] = value
		}
	}
	return p
}

func (w explanationWire) toEntity(agentID string) entity.Explanation {
	if w.Agent != "" {
		agentID = w.Agent
	}
	factors := w.RiskFactors
	if factors == nil {
		factors = []string{}
	}
	return entity.Explanation{
		AgentID:     agentID,
		RiskFactors: factors,
		Stats:       w.Stats.toEntity(agentID),
	}
}

func trendToEntity(agentID string, rows []trendPointWire) entity.RiskTrend {
	points := make([]entity.TrendPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, entity.TrendPoint{Date: r.Date, Risk: r.Risk})
	}
	return entity.NewRiskTrend(agentID, points)
}
