package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/application/dto"
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/service"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

type funcSource struct {
	id valueobject.SourceID
	fn func(ctx context.Context) (any, error)
}

func (s funcSource) ID() valueobject.SourceID { return s.id }

func (s funcSource) Fetch(ctx context.Context) (any, error) { return s.fn(ctx) }

func staticSource(id valueobject.SourceID, payload any) funcSource {
	return funcSource{id: id, fn: func(context.Context) (any, error) { return payload, nil }}
}

type funcDependent struct {
	id valueobject.SourceID
	fn func(ctx context.Context, subject string) (any, error)
}

func (s funcDependent) ID() valueobject.SourceID { return s.id }

func (s funcDependent) FetchFor(ctx context.Context, subject string) (any, error) {
	return s.fn(ctx, subject)
}

type mockNotifier struct {
	mu     sync.Mutex
	views  map[string]int
	alerts []*dto.AlertDTO
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{views: make(map[string]int)}
}

func (m *mockNotifier) Broadcast(view string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[view]++
}

func (m *mockNotifier) BroadcastAlert(alert *dto.AlertDTO) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

func (m *mockNotifier) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

type mockEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockEvents) PublishEvent(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockEvents) Close() error { return nil }

type mockGauges struct {
	mu    sync.Mutex
	names []string
}

func (m *mockGauges) PublishBatch(_ context.Context, gauges []entity.RiskGauge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range gauges {
		m.names = append(m.names, g.Name)
	}
	return nil
}

func (m *mockGauges) Flush(context.Context) error { return nil }

func (m *mockGauges) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.names {
		if n == name {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func rcaFixtures() []port.DataSource {
	return []port.DataSource{
		staticSource(valueobject.SourceRCASummary, entity.RCASummary{
			TopRiskSupplier: "Acme", MostFrequentFailure: "F42", RecurringDefectPercent: 12.5,
		}),
		staticSource(valueobject.SourceRCAGraph, entity.Graph{
			Nodes: []entity.GraphNode{
				{ID: "Acme", Kind: valueobject.NodeSupplier},
				{ID: "F42", Kind: valueobject.NodeFailure},
				{ID: "M1", Kind: valueobject.NodeModel},
			},
			Edges: []entity.GraphEdge{{Source: "Acme", Target: "F42", Weight: 3}},
		}),
		staticSource(valueobject.SourceRCASupplierRisk, []entity.SupplierRiskRow{{Supplier: "Acme", RiskScore: 33.3}}),
		staticSource(valueobject.SourceRCAHeatmap, []entity.FailureHeatRow{{Failure: "F42", Count: 17}}),
	}
}

func newRCAUseCase(sources []port.DataSource, cfg DashboardConfig) *RCADashboardUseCase {
	return NewRCADashboardUseCase(
		sources,
		cfg,
		service.NewSeverityClassifier(nil),
		service.NewInsightResolver(),
		logger.Nop(),
	)
}

func rcaReady(uc *RCADashboardUseCase) func() bool {
	return func() bool {
		view, err := uc.View()
		return err == nil && view.Summary != nil && view.Graph != nil && len(view.SupplierRisk) == 1 && len(view.Heatmap) == 1
	}
}

func TestRCADashboardScenario(t *testing.T) {
	notifier := newMockNotifier()
	gauges := &mockGauges{}
	uc := newRCAUseCase(rcaFixtures(), DashboardConfig{Interval: time.Hour, Notifier: notifier, Gauges: gauges})

	uc.Mount(context.Background())
	defer uc.Unmount()

	waitFor(t, "rca view", rcaReady(uc))

	view, _ := uc.View()
	if view.Loading || view.Banner != nil {
		t.Fatalf("unexpected loading/banner state: %+v", view)
	}
	if view.Insight.Kind != string(service.InsightNoSelection) {
		t.Fatalf("expected no selection insight, got %+v", view.Insight)
	}

	if err := uc.SelectNode(context.Background(), "Acme"); err != nil {
		t.Fatalf("SelectNode() error = %v", err)
	}
	view, _ = uc.View()
	if view.Insight.Kind != string(service.InsightSupplier) || view.Insight.RiskScore != 33.3 {
		t.Fatalf("unexpected supplier insight %+v", view.Insight)
	}
	if view.Insight.Text != "Acme contributes to approximately 33.3% of recorded recurring failures." {
		t.Fatalf("unexpected insight text %q", view.Insight.Text)
	}

	if err := uc.SelectNode(context.Background(), "F42"); err != nil {
		t.Fatalf("SelectNode() error = %v", err)
	}
	view, _ = uc.View()
	if view.Insight.Kind != string(service.InsightFailure) || view.Insight.Count != 17 {
		t.Fatalf("unexpected failure insight %+v", view.Insight)
	}

	if err := uc.SelectNode(context.Background(), "M1"); err != nil {
		t.Fatalf("SelectNode() error = %v", err)
	}
	view, _ = uc.View()
	if view.Insight.Kind != string(service.InsightNone) {
		t.Fatalf("model node must have no insight, got %+v", view.Insight)
	}

	if view.SupplierRisk[0].Level != valueobject.RiskNormal || view.SupplierRisk[0].BarWidth != 33.3 {
		t.Fatalf("unexpected supplier row %+v", view.SupplierRisk[0])
	}

	waitFor(t, "defect gauge", func() bool { return gauges.has("RecurringDefectPercent") })
	waitFor(t, "broadcast", func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.views[ViewRCA] > 0
	})
}

func TestRCADashboardNodeKindFollowsLatestGraph(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	sources := rcaFixtures()
	graph := sources[1].(funcSource)
	sources[1] = funcSource{id: graph.id, fn: func(ctx context.Context) (any, error) {
		<-release
		return graph.fn(ctx)
	}}

	uc := newRCAUseCase(sources, DashboardConfig{Interval: time.Hour})
	uc.Mount(context.Background())
	defer uc.Unmount()
	defer unblock()

	waitFor(t, "supplier risk", func() bool {
		view, err := uc.View()
		return err == nil && len(view.SupplierRisk) == 1
	})

	// Граф еще загружается: тип узла неизвестен
	if err := uc.SelectNode(context.Background(), "Acme"); err != nil {
		t.Fatalf("SelectNode() error = %v", err)
	}
	view, _ := uc.View()
	if view.Graph != nil || view.Insight.Kind != string(service.InsightNone) {
		t.Fatalf("expected no insight before graph, got graph=%v insight=%+v", view.Graph != nil, view.Insight)
	}

	unblock()
	waitFor(t, "supplier insight after graph", func() bool {
		view, err := uc.View()
		return err == nil && view.Insight.Kind == string(service.InsightSupplier)
	})

	view, _ = uc.View()
	if view.Insight.RiskScore != 33.3 || view.Selected == nil || view.Selected.NodeKind != string(valueobject.NodeSupplier) {
		t.Fatalf("unexpected insight %+v selected %+v", view.Insight, view.Selected)
	}
}

func TestRCADashboardStaleRetainOnRefresh(t *testing.T) {
	var (
		mu        sync.Mutex
		failGraph bool
	)
	sources := rcaFixtures()
	okGraph := sources[1]
	sources[1] = funcSource{id: valueobject.SourceRCAGraph, fn: func(ctx context.Context) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		if failGraph {
			return nil, port.NewTransportError("Internal Server Error", 500, nil)
		}
		return okGraph.Fetch(ctx)
	}}

	uc := newRCAUseCase(sources, DashboardConfig{Interval: time.Hour})
	uc.Mount(context.Background())
	defer uc.Unmount()

	waitFor(t, "rca view", rcaReady(uc))

	mu.Lock()
	failGraph = true
	mu.Unlock()

	// Refresh повторяется: предыдущая загрузка графа может быть еще в полете
	waitFor(t, "error banner", func() bool {
		if err := uc.Refresh(); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		view, _ := uc.View()
		return view.Banner != nil
	})

	view, _ := uc.View()
	if view.Banner.Source != "rca.graph" || view.Banner.Message != "Internal Server Error" {
		t.Fatalf("unexpected banner %+v", view.Banner)
	}
	if view.Graph == nil || len(view.Graph.Nodes) != 3 {
		t.Fatal("graph must be retained after failure")
	}
	for _, src := range view.Sources {
		if src.Source == "rca.graph" && (!src.Stale || src.Status != "failed") {
			t.Fatalf("graph source must be stale: %+v", src)
		}
	}
}

func TestRCADashboardNotMounted(t *testing.T) {
	uc := newRCAUseCase(rcaFixtures(), DashboardConfig{})

	if _, err := uc.View(); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted, got %v", err)
	}
	if err := uc.SelectNode(context.Background(), "Acme"); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted, got %v", err)
	}
	if err := uc.Refresh(); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted, got %v", err)
	}

	uc.Mount(context.Background())
	uc.Unmount()
	uc.Unmount()
	if _, err := uc.View(); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted after unmount, got %v", err)
	}
}

func uebaDependents(calls *sync.Map) []port.DependentSource {
	record := func(subject string) {
		calls.Store(subject, true)
	}
	return []port.DependentSource{
		funcDependent{id: valueobject.SourceUEBAProfile, fn: func(_ context.Context, subject string) (any, error) {
			record(subject)
			return entity.AgentProfile{AgentID: subject, FailureRate: 0.2, AvgLatencyMs: 340}, nil
		}},
		funcDependent{id: valueobject.SourceUEBAExplanation, fn: func(_ context.Context, subject string) (any, error) {
			return entity.Explanation{AgentID: subject, RiskFactors: []string{"High failure rate", "Unusually long sessions", "Weekend usage"}}, nil
		}},
		funcDependent{id: valueobject.SourceUEBATrend, fn: func(_ context.Context, subject string) (any, error) {
			return entity.NewRiskTrend(subject, []entity.TrendPoint{{Date: "2026-01-02", Risk: 80}, {Date: "2026-01-01", Risk: 70}}), nil
		}},
	}
}

func newUEBAUseCase(polled []port.DataSource, dependent []port.DependentSource, cfg DashboardConfig) *UEBADashboardUseCase {
	return NewUEBADashboardUseCase(
		polled,
		dependent,
		cfg,
		service.NewSeverityClassifier(nil),
		service.NewRiskFactorClassifier(),
		service.NewRiskAggregator(),
		logger.Nop(),
	)
}

func TestUEBADashboardAutoSelectAndAlert(t *testing.T) {
	notifier := newMockNotifier()
	events := &mockEvents{}
	gauges := &mockGauges{}
	var calls sync.Map

	polled := []port.DataSource{
		staticSource(valueobject.SourceUEBASummary, entity.UEBASummary{HighestRiskAgent: "agent-7", RiskScore: 78}),
		staticSource(valueobject.SourceUEBARanking, []entity.AgentRiskRow{
			{AgentID: "agent-7", RiskScore: 78},
			{AgentID: "agent-2", RiskScore: 91},
			{AgentID: "agent-3", RiskScore: 140},
		}),
	}
	uc := newUEBAUseCase(polled, uebaDependents(&calls), DashboardConfig{
		Interval: time.Hour, Notifier: notifier, Events: events, Gauges: gauges,
	})

	uc.Mount(context.Background())
	defer uc.Unmount()

	waitFor(t, "agent details", func() bool {
		view, err := uc.View()
		return err == nil && view.Profile != nil && view.Explanation != nil && len(view.Trend) == 2 && len(view.Ranking) == 3
	})

	view, _ := uc.View()
	if view.Selected == nil || view.Selected.ID != "agent-7" {
		t.Fatalf("expected auto-selected agent-7, got %+v", view.Selected)
	}
	if view.Summary.Level != valueobject.RiskMedium || !view.Summary.RequiresAttention || view.Summary.Status != "Immediate Attention Required" {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
	if !view.Ranking[0].Selected || view.Ranking[1].Selected {
		t.Fatalf("selected flag wrong: %+v", view.Ranking)
	}
	if view.Ranking[2].BarWidth != 100 || view.Ranking[2].Level != valueobject.RiskHigh {
		t.Fatalf("unexpected ranking row %+v", view.Ranking[2])
	}
	if view.Profile.FailureRatePercent != 20 {
		t.Fatalf("unexpected profile %+v", view.Profile)
	}
	wantSeverity := []string{"severe", "medium", "info"}
	for i, f := range view.Explanation.Factors {
		if f.Severity != wantSeverity[i] {
			t.Fatalf("factor %q severity %s, want %s", f.Reason, f.Severity, wantSeverity[i])
		}
	}
	if view.Trend[0].Date != "2026-01-01" {
		t.Fatalf("trend must be sorted, got %+v", view.Trend)
	}

	waitFor(t, "attention alert", func() bool { return notifier.alertCount() == 1 })
	events.mu.Lock()
	if len(events.subjects) != 1 || events.subjects[0] != AttentionSubject {
		t.Fatalf("unexpected events %v", events.subjects)
	}
	events.mu.Unlock()

	// Повторный опрос с той же сводкой не создает новый alert
	if err := uc.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if notifier.alertCount() != 1 {
		t.Fatalf("alert must fire once per crossing, got %d", notifier.alertCount())
	}
	waitFor(t, "ranking gauges", func() bool { return gauges.has("HighRiskAgents") && gauges.has("HighestAgentRisk") })
}

func TestUEBADashboardUserSelectionBeatsAutoSelect(t *testing.T) {
	release := make(chan struct{})
	var calls sync.Map

	polled := []port.DataSource{
		funcSource{id: valueobject.SourceUEBASummary, fn: func(context.Context) (any, error) {
			<-release
			return entity.UEBASummary{HighestRiskAgent: "agent-7", RiskScore: 50}, nil
		}},
		staticSource(valueobject.SourceUEBARanking, []entity.AgentRiskRow{{AgentID: "agent-2", RiskScore: 40}}),
	}
	uc := newUEBAUseCase(polled, uebaDependents(&calls), DashboardConfig{Interval: time.Hour})

	uc.Mount(context.Background())
	defer uc.Unmount()

	if err := uc.SelectAgent(context.Background(), "agent-2"); err != nil {
		t.Fatalf("SelectAgent() error = %v", err)
	}
	close(release)

	waitFor(t, "summary", func() bool {
		view, _ := uc.View()
		return view.Summary != nil
	})
	uc.WaitDependent()

	view, _ := uc.View()
	if view.Selected.ID != "agent-2" {
		t.Fatalf("auto-select must not override user choice, got %+v", view.Selected)
	}
	if view.Profile == nil || view.Profile.AgentID != "agent-2" {
		t.Fatalf("profile must belong to agent-2, got %+v", view.Profile)
	}
	if _, ok := calls.Load("agent-7"); ok {
		t.Fatal("agent-7 must never be fetched")
	}
}

func TestUEBADashboardRejectsEmptyAgent(t *testing.T) {
	uc := newUEBAUseCase(nil, nil, DashboardConfig{Interval: time.Hour})
	uc.Mount(context.Background())
	defer uc.Unmount()

	if err := uc.SelectAgent(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty agent id")
	}
}
