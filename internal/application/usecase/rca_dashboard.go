package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/application/aggregator"
	"github.com/dreschagin/risk-dashboard/internal/application/dto"
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/application/selection"
	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/repository"
	"github.com/dreschagin/risk-dashboard/internal/domain/service"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// ViewRCA имя экрана в уведомлениях
const ViewRCA = "rca"

// RCADashboardUseCase координирует опрос источников RCA, выбор узла и сборку модели представления
type RCADashboardUseCase struct {
	sources    []port.DataSource
	cfg        DashboardConfig
	classifier *service.SeverityClassifier
	resolver   *service.InsightResolver
	logger     *logger.Logger

	mu      sync.Mutex
	session *session
}

// NewRCADashboardUseCase создает новый use case
func NewRCADashboardUseCase(
	sources []port.DataSource,
	cfg DashboardConfig,
	classifier *service.SeverityClassifier,
	resolver *service.InsightResolver,
	logger *logger.Logger,
) *RCADashboardUseCase {
	return &RCADashboardUseCase{
		sources:    sources,
		cfg:        cfg,
		classifier: classifier,
		resolver:   resolver,
		logger:     logger.With("view", ViewRCA),
	}
}

// Mount создает новые снимки в Pending и запускает опрос. Повторный вызов ничего не делает.
func (uc *RCADashboardUseCase) Mount(ctx context.Context) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.session != nil {
		return
	}

	s := newSession(ctx, valueobject.RCASources(), uc.cfg, uc.logger)
	uc.session = s

	s.start(uc.sources, uc.cfg.Interval,
		func(c aggregator.Change) { uc.onChange(s, c) },
		func(selection.Transition) { uc.publish(s) },
	)

	uc.logger.Info("Dashboard mounted", "sources", len(uc.sources))
}

// Unmount останавливает опрос; ответы, пришедшие позже, отбрасываются
func (uc *RCADashboardUseCase) Unmount() {
	uc.mu.Lock()
	s := uc.session
	uc.session = nil
	uc.mu.Unlock()

	if s == nil {
		return
	}
	s.stop()
	uc.logger.Info("Dashboard unmounted")
}

// Refresh запускает внеочередной цикл опроса
func (uc *RCADashboardUseCase) Refresh() error {
	s, err := uc.current()
	if err != nil {
		return err
	}
	if !s.handle.Refresh() {
		return ErrNotMounted
	}
	return nil
}

// SelectNode выбирает узел графа. Хранится только id: тип узла берется
// из текущего графа при каждой сборке модели.
func (uc *RCADashboardUseCase) SelectNode(ctx context.Context, nodeID string) error {
	s, err := uc.current()
	if err != nil {
		return err
	}

	if err := s.machine.UserSelect(ctx, valueobject.NodeSelection(nodeID, valueobject.NodeUnknown)); err != nil {
		return fmt.Errorf("failed to select node: %w", err)
	}
	return nil
}

// View собирает текущую модель представления
func (uc *RCADashboardUseCase) View() (*dto.RCAViewDTO, error) {
	s, err := uc.current()
	if err != nil {
		return nil, err
	}
	sel, _ := s.machine.Current()
	return uc.buildView(s.agg, sel), nil
}

func (uc *RCADashboardUseCase) current() (*session, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.session == nil {
		return nil, ErrNotMounted
	}
	return uc.session, nil
}

func (uc *RCADashboardUseCase) onChange(s *session, c aggregator.Change) {
	if c.Changed && c.Source == valueobject.SourceRCASummary && c.Snapshot.IsReady() {
		if summary, ok := entity.PayloadAs[entity.RCASummary](c.Snapshot); ok {
			uc.publishGauges(s.ctx, summary)
		}
	}
	uc.publish(s)
}

func (uc *RCADashboardUseCase) publish(s *session) {
	if uc.cfg.Notifier == nil {
		return
	}
	sel, _ := s.machine.Current()
	uc.cfg.Notifier.Broadcast(ViewRCA, uc.buildView(s.agg, sel))
}

func (uc *RCADashboardUseCase) publishGauges(ctx context.Context, summary entity.RCASummary) {
	if uc.cfg.Gauges == nil {
		return
	}
	gauge := entity.RiskGauge{
		Name:       "RecurringDefectPercent",
		Value:      summary.RecurringDefectPercent,
		Unit:       "Percent",
		Dimensions: map[string]string{"View": ViewRCA},
		At:         time.Now(),
	}
	if err := uc.cfg.Gauges.PublishBatch(ctx, []entity.RiskGauge{gauge}); err != nil {
		uc.logger.Warn("Failed to publish gauges", "error", err.Error())
	}
}

func (uc *RCADashboardUseCase) buildView(reader repository.SnapshotReader, sel valueobject.Selection) *dto.RCAViewDTO {
	snaps := reader.Snapshots()
	order := valueobject.RCASources()

	graph, hasGraph := entity.PayloadAs[entity.Graph](snaps[valueobject.SourceRCAGraph])
	sel = withNodeKind(sel, graph)

	view := &dto.RCAViewDTO{
		Timestamp:    time.Now(),
		Loading:      snaps[valueobject.SourceRCASummary].IsPending(),
		Banner:       dto.FirstErrorBanner(snaps, order),
		Sources:      dto.SourceStatuses(snaps, order),
		Selected:     dto.FromSelection(sel),
		SupplierRisk: []dto.SupplierRiskDTO{},
		Heatmap:      []dto.FailureHeatDTO{},
	}

	if summary, ok := entity.PayloadAs[entity.RCASummary](snaps[valueobject.SourceRCASummary]); ok {
		view.Summary = dto.FromRCASummary(summary)
	}
	if hasGraph {
		view.Graph = dto.FromGraph(graph)
	}

	supplierRisk, _ := entity.PayloadAs[[]entity.SupplierRiskRow](snaps[valueobject.SourceRCASupplierRisk])
	heatmap, _ := entity.PayloadAs[[]entity.FailureHeatRow](snaps[valueobject.SourceRCAHeatmap])

	for _, row := range supplierRisk {
		view.SupplierRisk = append(view.SupplierRisk,
			dto.NewSupplierRiskDTO(row, uc.classifier.Classify(row.RiskScore), service.BarWidth(row.RiskScore)))
	}
	view.Heatmap = dto.FromHeatmap(heatmap)
	view.Insight = dto.FromInsight(uc.resolver.Resolve(sel, supplierRisk, heatmap))

	return view
}

// withNodeKind подставляет тип выбранного узла из графа; без графа или
// при отсутствии узла тип unknown
func withNodeKind(sel valueobject.Selection, graph entity.Graph) valueobject.Selection {
	if sel.Kind != valueobject.SelectionNode {
		return sel
	}
	kind := valueobject.NodeUnknown
	if node, found := graph.Node(sel.ID); found {
		kind = node.Kind
	}
	return valueobject.NodeSelection(sel.ID, kind)
}
