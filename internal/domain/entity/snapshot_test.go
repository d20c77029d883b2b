package entity

import (
	"slices"
	"testing"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

func TestSnapshotLifecycle(t *testing.T) {
	snap := NewPendingSnapshot(valueobject.SourceRCASummary, "")
	if !snap.IsPending() || snap.HasData() {
		t.Fatalf("new snapshot must be pending without data: %+v", snap)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ready := snap.Succeed(RCASummary{TopRiskSupplier: "Acme"}, at)
	if !ready.IsReady() || ready.FetchedAt() != at || ready.Error() != "" {
		t.Fatalf("unexpected ready snapshot: %+v", ready)
	}

	failed := ready.Fail("Internal Server Error")
	if !failed.IsFailed() || !failed.IsStale() {
		t.Fatalf("failure after ready must be stale: %+v", failed)
	}
	summary, ok := PayloadAs[RCASummary](failed)
	if !ok || summary.TopRiskSupplier != "Acme" {
		t.Fatalf("stale payload lost: %+v", failed.Payload())
	}
	if failed.FetchedAt() != at {
		t.Fatalf("fetchedAt must be kept on failure, got %v", failed.FetchedAt())
	}

	// Исходный снимок не изменился
	if !ready.IsReady() {
		t.Fatal("Fail must not mutate the receiver")
	}
}

func TestSnapshotFirstLoadFailure(t *testing.T) {
	failed := NewPendingSnapshot(valueobject.SourceUEBASummary, "").Fail("")
	if failed.Payload() != nil || failed.IsStale() {
		t.Fatalf("first load failure must have no payload: %+v", failed)
	}
	if failed.Error() != unknownError {
		t.Fatalf("empty message must be replaced, got %q", failed.Error())
	}
}

func TestGraphNodeFirstMatch(t *testing.T) {
	g := Graph{Nodes: []GraphNode{
		{ID: "A", Kind: valueobject.NodeSupplier},
		{ID: "A", Kind: valueobject.NodeFailure},
	}}
	n, ok := g.Node("A")
	if !ok || n.Kind != valueobject.NodeSupplier {
		t.Fatalf("expected first node, got %+v", n)
	}
	if _, ok := g.Node("missing"); ok {
		t.Fatal("expected missing node")
	}
}

func TestRiskTrendSortedAndRestartable(t *testing.T) {
	trend := NewRiskTrend("agent-7", []TrendPoint{
		{Date: "2026-01-03", Risk: 70},
		{Date: "2026-01-01", Risk: 50},
		{Date: "2026-01-02", Risk: 60},
	})

	first := slices.Collect(trend.Points())
	second := slices.Collect(trend.Points())

	if len(first) != 3 || first[0].Date != "2026-01-01" || first[2].Date != "2026-01-03" {
		t.Fatalf("points not sorted: %+v", first)
	}
	if !slices.Equal(first, second) {
		t.Fatal("iterator must be restartable")
	}
}
