package analytics

import (
	"context"
	"net/url"

	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/domain/service"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/discovery"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// Backend paths
const (
	PathRCASummary      = "/rca/summary"
	PathRCAGraph        = "/rca/graph"
	PathRCASupplierRisk = "/rca/supplier-risk"
	PathRCAHeatmap      = "/rca/heatmap"
	PathUEBASummary     = "/ueba/summary"
	PathUEBARanking     = "/ueba/risk-ranking"
	PathUEBAAgent       = "/ueba/agent/"
	PathUEBAExplain     = "/ueba/explain/"
	PathUEBATrend       = "/ueba/risk-trend/"
)

type polledSource struct {
	id    valueobject.SourceID
	fetch func(ctx context.Context) (any, error)
}

func (s polledSource) ID() valueobject.SourceID { return s.id }

func (s polledSource) Fetch(ctx context.Context) (any, error) { return s.fetch(ctx) }

type dependentSource struct {
	id    valueobject.SourceID
	fetch func(ctx context.Context, agentID string) (any, error)
}

func (s dependentSource) ID() valueobject.SourceID { return s.id }

func (s dependentSource) FetchFor(ctx context.Context, subject string) (any, error) {
	return s.fetch(ctx, subject)
}

// NewRCASources returns the four polled RCA sources.
// The graph is normalized, defects in the payload are logged.
func NewRCASources(c *Client, validator *service.GraphValidator, log *logger.Logger) []port.DataSource {
	return []port.DataSource{
		polledSource{id: valueobject.SourceRCASummary, fetch: func(ctx context.Context) (any, error) {
			var w rcaSummaryWire
			if err := c.GetJSON(ctx, discovery.ServiceRCA, PathRCASummary, &w, false); err != nil {
				return nil, err
			}
			return w.toEntity(), nil
		}},
		polledSource{id: valueobject.SourceRCAGraph, fetch: func(ctx context.Context) (any, error) {
			var w graphWire
			if err := c.GetJSON(ctx, discovery.ServiceRCA, PathRCAGraph, &w, false); err != nil {
				return nil, err
			}
			graph, report := validator.Normalize(w.toEntity())
			if !report.Clean() {
				log.Warn("RCA graph normalized",
					"duplicate_nodes", report.DuplicateNodes,
					"dangling_edges", report.DanglingEdges,
					"clamped_weights", report.ClampedWeights,
				)
			}
			return graph, nil
		}},
		polledSource{id: valueobject.SourceRCASupplierRisk, fetch: func(ctx context.Context) (any, error) {
			var rows []supplierRiskWire
			if err := c.GetJSON(ctx, discovery.ServiceRCA, PathRCASupplierRisk, &rows, false); err != nil {
				return nil, err
			}
			return supplierRiskToEntity(rows), nil
		}},
		polledSource{id: valueobject.SourceRCAHeatmap, fetch: func(ctx context.Context) (any, error) {
			var rows []heatmapWire
			if err := c.GetJSON(ctx, discovery.ServiceRCA, PathRCAHeatmap, &rows, false); err != nil {
				return nil, err
			}
			heat, err := heatmapToEntity(rows)
			if err != nil {
				return nil, port.NewParseError(invalidBodyMessage, err)
			}
			return heat, nil
		}},
	}
}

// NewUEBASources returns the polled UEBA summary and ranking.
func NewUEBASources(c *Client) []port.DataSource {
	return []port.DataSource{
		polledSource{id: valueobject.SourceUEBASummary, fetch: func(ctx context.Context) (any, error) {
			var w uebaSummaryWire
			if err := c.GetJSON(ctx, discovery.ServiceUEBA, PathUEBASummary, &w, false); err != nil {
				return nil, err
			}
			return w.toEntity(), nil
		}},
		polledSource{id: valueobject.SourceUEBARanking, fetch: func(ctx context.Context) (any, error) {
			var rows []agentRiskWire
			if err := c.GetJSON(ctx, discovery.ServiceUEBA, PathUEBARanking, &rows, false); err != nil {
				return nil, err
			}
			return rankingToEntity(rows), nil
		}},
	}
}

// NewUEBADependentSources returns per-agent sources; responses are cacheable.
func NewUEBADependentSources(c *Client) []port.DependentSource {
	return []port.DependentSource{
		dependentSource{id: valueobject.SourceUEBAProfile, fetch: func(ctx context.Context, agentID string) (any, error) {
			var w profileWire
			if err := c.GetJSON(ctx, discovery.ServiceUEBA, PathUEBAAgent+url.PathEscape(agentID), &w, true); err != nil {
				return nil, err
			}
			if w == nil {
				return nil, port.NewParseError(invalidBodyMessage, nil)
			}
			return w.toEntity(agentID), nil
		}},
		dependentSource{id: valueobject.SourceUEBAExplanation, fetch: func(ctx context.Context, agentID string) (any, error) {
			var w explanationWire
			if err := c.GetJSON(ctx, discovery.ServiceUEBA, PathUEBAExplain+url.PathEscape(agentID), &w, true); err != nil {
				return nil, err
			}
			return w.toEntity(agentID), nil
		}},
		dependentSource{id: valueobject.SourceUEBATrend, fetch: func(ctx context.Context, agentID string) (any, error) {
			var rows []trendPointWire
			if err := c.GetJSON(ctx, discovery.ServiceUEBA, PathUEBATrend+url.PathEscape(agentID), &rows, true); err != nil {
				return nil, err
			}
			return trendToEntity(agentID, rows), nil
		}},
	}
}
