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

const (
	// ViewUEBA имя экрана в уведомлениях
	ViewUEBA = "ueba"

	// AttentionSubject subject события о переходе в зону внимания
	AttentionSubject = "ueba.attention"
)

// UEBADashboardUseCase координирует опрос рейтинга агентов, автоматический и ручной выбор агента
type UEBADashboardUseCase struct {
	polled     []port.DataSource
	dependent  []port.DependentSource
	cfg        DashboardConfig
	classifier *service.SeverityClassifier
	factors    *service.RiskFactorClassifier
	aggregates *service.RiskAggregator
	logger     *logger.Logger

	mu        sync.Mutex
	session   *session
	attention bool
}

// NewUEBADashboardUseCase создает новый use case
func NewUEBADashboardUseCase(
	polled []port.DataSource,
	dependent []port.DependentSource,
	cfg DashboardConfig,
	classifier *service.SeverityClassifier,
	factors *service.RiskFactorClassifier,
	aggregates *service.RiskAggregator,
	logger *logger.Logger,
) *UEBADashboardUseCase {
	return &UEBADashboardUseCase{
		polled:     polled,
		dependent:  dependent,
		cfg:        cfg,
		classifier: classifier,
		factors:    factors,
		aggregates: aggregates,
		logger:     logger.With("view", ViewUEBA),
	}
}

func uebaSources() []valueobject.SourceID {
	return append(valueobject.UEBAPolledSources(), valueobject.UEBAAgentSources()...)
}

// Mount создает новые снимки и запускает опрос. Повторный вызов ничего не делает.
func (uc *UEBADashboardUseCase) Mount(ctx context.Context) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.session != nil {
		return
	}

	s := newSession(ctx, uebaSources(), uc.cfg, uc.logger)
	s.fetcher.Register(valueobject.SelectionAgent, uc.dependent...)
	uc.session = s
	uc.attention = false

	s.start(uc.polled, uc.cfg.Interval,
		func(c aggregator.Change) { uc.onChange(s, c) },
		func(selection.Transition) { uc.publish(s) },
	)

	uc.logger.Info("Dashboard mounted", "sources", len(uc.polled), "dependent_sources", len(uc.dependent))
}

// Unmount останавливает опрос и загрузки по выбранному агенту
func (uc *UEBADashboardUseCase) Unmount() {
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
func (uc *UEBADashboardUseCase) Refresh() error {
	s, err := uc.current()
	if err != nil {
		return err
	}
	if !s.handle.Refresh() {
		return ErrNotMounted
	}
	return nil
}

// SelectAgent выбирает агента по клику в рейтинге
func (uc *UEBADashboardUseCase) SelectAgent(ctx context.Context, agentID string) error {
	s, err := uc.current()
	if err != nil {
		return err
	}
	if err := s.machine.UserSelect(ctx, valueobject.AgentSelection(agentID)); err != nil {
		return fmt.Errorf("failed to select agent: %w", err)
	}
	return nil
}

// View собирает текущую модель представления
func (uc *UEBADashboardUseCase) View() (*dto.UEBAViewDTO, error) {
	s, err := uc.current()
	if err != nil {
		return nil, err
	}
	sel, _ := s.machine.Current()
	return uc.buildView(s.agg, sel), nil
}

// WaitDependent ждет завершения загрузок по выбранному агенту
func (uc *UEBADashboardUseCase) WaitDependent() {
	if s, err := uc.current(); err == nil {
		s.fetcher.Wait()
	}
}

func (uc *UEBADashboardUseCase) current() (*session, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.session == nil {
		return nil, ErrNotMounted
	}
	return uc.session, nil
}

func (uc *UEBADashboardUseCase) onChange(s *session, c aggregator.Change) {
	if c.Changed && c.Snapshot.IsReady() {
		switch c.Source {
		case valueobject.SourceUEBASummary:
			if summary, ok := entity.PayloadAs[entity.UEBASummary](c.Snapshot); ok {
				// 1. Автовыбор агента с наибольшим риском, один раз за время жизни экрана
				if s.machine.AutoSelectIfEmpty(s.ctx, valueobject.AgentSelection(summary.HighestRiskAgent)) {
					uc.logger.Info("Highest risk agent auto-selected", "agent_id", summary.HighestRiskAgent)
				}
				// 2. Alert при переходе в зону внимания
				uc.checkAttention(s, summary)
				uc.publishSummaryGauge(s.ctx, summary)
			}
		case valueobject.SourceUEBARanking:
			if rows, ok := entity.PayloadAs[[]entity.AgentRiskRow](c.Snapshot); ok {
				uc.publishRankingGauges(s.ctx, rows)
			}
		}
	}
	uc.publish(s)
}

// checkAttention отправляет alert только на переходе false -> true
func (uc *UEBADashboardUseCase) checkAttention(s *session, summary entity.UEBASummary) {
	required := uc.classifier.RequiresAttention(summary.RiskScore)

	uc.mu.Lock()
	if uc.session != s {
		uc.mu.Unlock()
		return
	}
	rising := required && !uc.attention
	uc.attention = required
	uc.mu.Unlock()

	if !rising {
		return
	}

	message := fmt.Sprintf("Agent %s risk score %.1f requires immediate attention", summary.HighestRiskAgent, summary.RiskScore)
	alert := dto.NewAlertDTO(summary, uc.classifier.Classify(summary.RiskScore), message)
	uc.logger.Warn("Attention threshold crossed", "agent_id", summary.HighestRiskAgent, "risk_score", summary.RiskScore)

	if uc.cfg.Notifier != nil {
		uc.cfg.Notifier.BroadcastAlert(alert)
	}
	if uc.cfg.Events != nil {
		if err := uc.cfg.Events.PublishEvent(s.ctx, AttentionSubject, alert); err != nil {
			uc.logger.Error("Failed to publish attention event", err)
		}
	}
}

func (uc *UEBADashboardUseCase) publishSummaryGauge(ctx context.Context, summary entity.UEBASummary) {
	uc.publishGauges(ctx, []entity.RiskGauge{{
		Name:       "HighestAgentRisk",
		Value:      summary.RiskScore,
		Unit:       "None",
		Dimensions: map[string]string{"View": ViewUEBA},
		At:         time.Now(),
	}})
}

func (uc *UEBADashboardUseCase) publishRankingGauges(ctx context.Context, rows []entity.AgentRiskRow) {
	counts := uc.aggregates.CountByLevel(rows)
	now := time.Now()
	gauges := []entity.RiskGauge{{
		Name:       "HighRiskAgents",
		Value:      float64(counts[valueobject.RiskHigh]),
		Unit:       "Count",
		Dimensions: map[string]string{"View": ViewUEBA},
		At:         now,
	}}
	if avg, ok := uc.aggregates.Average(rows); ok {
		gauges = append(gauges, entity.RiskGauge{
			Name:       "AverageAgentRisk",
			Value:      avg,
			Unit:       "None",
			Dimensions: map[string]string{"View": ViewUEBA},
			At:         now,
		})
	}
	uc.publishGauges(ctx, gauges)
}

func (uc *UEBADashboardUseCase) publishGauges(ctx context.Context, gauges []entity.RiskGauge) {
	if uc.cfg.Gauges == nil {
		return
	}
	if err := uc.cfg.Gauges.PublishBatch(ctx, gauges); err != nil {
		uc.logger.Warn("Failed to publish gauges", "error", err.Error())
	}
}

func (uc *UEBADashboardUseCase) publish(s *session) {
	if uc.cfg.Notifier == nil {
		return
	}
	sel, _ := s.machine.Current()
	uc.cfg.Notifier.Broadcast(ViewUEBA, uc.buildView(s.agg, sel))
}

func (uc *UEBADashboardUseCase) buildView(reader repository.SnapshotReader, sel valueobject.Selection) *dto.UEBAViewDTO {
	snaps := reader.Snapshots()
	order := uebaSources()

	view := &dto.UEBAViewDTO{
		Timestamp: time.Now(),
		Loading:   snaps[valueobject.SourceUEBASummary].IsPending(),
		Banner:    dto.FirstErrorBanner(snaps, order),
		Sources:   dto.SourceStatuses(snaps, order),
		Selected:  dto.FromSelection(sel),
		Ranking:   []dto.AgentRankDTO{},
		Trend:     []dto.TrendPointDTO{},
	}

	if summary, ok := entity.PayloadAs[entity.UEBASummary](snaps[valueobject.SourceUEBASummary]); ok {
		view.Summary = dto.NewUEBASummaryDTO(
			summary,
			uc.classifier.Classify(summary.RiskScore),
			uc.classifier.RequiresAttention(summary.RiskScore),
			uc.classifier.AttentionStatus(summary.RiskScore),
		)
	}

	ranking, _ := entity.PayloadAs[[]entity.AgentRiskRow](snaps[valueobject.SourceUEBARanking])
	for _, row := range ranking {
		view.Ranking = append(view.Ranking, dto.NewAgentRankDTO(
			row,
			uc.classifier.Classify(row.RiskScore),
			service.BarWidth(row.RiskScore),
			sel.Kind == valueobject.SelectionAgent && row.AgentID == sel.ID,
		))
	}

	if sel.Kind != valueobject.SelectionAgent || sel.IsEmpty() {
		return view
	}

	// Зависимые данные показываются, только если они собраны для текущего агента
	for _, src := range valueobject.UEBAAgentSources() {
		snap := snaps[src]
		if snap.Subject() != sel.ID {
			view.DetailLoading = true
			continue
		}
		if snap.IsPending() {
			view.DetailLoading = true
		}
		switch src {
		case valueobject.SourceUEBAProfile:
			if p, ok := entity.PayloadAs[entity.AgentProfile](snap); ok {
				view.Profile = dto.FromAgentProfile(p)
			}
		case valueobject.SourceUEBAExplanation:
			if e, ok := entity.PayloadAs[entity.Explanation](snap); ok {
				view.Explanation = uc.explanationDTO(e)
			}
		case valueobject.SourceUEBATrend:
			if t, ok := entity.PayloadAs[entity.RiskTrend](snap); ok {
				view.Trend = dto.FromTrend(t)
			}
		}
	}

	return view
}

func (uc *UEBADashboardUseCase) explanationDTO(e entity.Explanation) *dto.ExplanationDTO {
	out := &dto.ExplanationDTO{
		AgentID: e.AgentID,
		Factors: make([]dto.RiskFactorDTO, 0, len(e.RiskFactors)),
		Stats:   dto.FromAgentProfile(e.Stats),
	}
	for _, reason := range e.RiskFactors {
		out.Factors = append(out.Factors, dto.RiskFactorDTO{
			Reason:   reason,
			Severity: string(uc.factors.Classify(reason)),
		})
	}
	return out
}
