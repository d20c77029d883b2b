package service

import (
	"math"
	"testing"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

func TestRiskAggregator(t *testing.T) {
	rows := []entity.AgentRiskRow{
		{AgentID: "a", RiskScore: 92},
		{AgentID: "b", RiskScore: 70},
		{AgentID: "c", RiskScore: 92},
		{AgentID: "d", RiskScore: math.NaN()},
		{AgentID: "e", RiskScore: 12},
	}
	a := NewRiskAggregator()

	counts := a.CountByLevel(rows)
	if counts[valueobject.RiskHigh] != 2 || counts[valueobject.RiskMedium] != 1 || counts[valueobject.RiskNormal] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	top, ok := a.Top(rows)
	if !ok || top.AgentID != "a" {
		t.Fatalf("expected first top agent a, got %+v", top)
	}

	avg, ok := a.Average(rows)
	if !ok || avg != (92+70+92+12)/4.0 {
		t.Fatalf("unexpected average %v", avg)
	}

	if _, ok := a.Average(nil); ok {
		t.Fatal("expected ok=false for empty rows")
	}
	if _, ok := a.Top(nil); ok {
		t.Fatal("expected no top for empty rows")
	}
}
