package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/application/aggregator"
	"github.com/dreschagin/risk-dashboard/internal/application/polling"
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/application/selection"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// ErrNotMounted экран не смонтирован
var ErrNotMounted = errors.New("dashboard view is not mounted")

// DashboardConfig общие зависимости экранов; все поля кроме Interval необязательны
type DashboardConfig struct {
	Interval      time.Duration
	Notifier      port.NotificationService
	Events        port.EventPublisher
	Gauges        port.GaugePublisher
	Recorder      aggregator.Recorder
	CycleObserver polling.CycleObserver
	StaleRecorder selection.StaleRecorder
}

// session состояние одного монтирования экрана.
// Снимки, выбор и расписание живут ровно столько же, сколько session.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc

	agg       *aggregator.Aggregator
	scheduler *polling.Scheduler
	fetcher   *selection.DependentFetcher
	machine   *selection.Machine
	handle    *polling.CancelHandle

	changes     <-chan aggregator.Change
	transitions <-chan selection.Transition
	done        chan struct{}
}

func newSession(parent context.Context, sources []valueobject.SourceID, cfg DashboardConfig, log *logger.Logger) *session {
	ctx, cancel := context.WithCancel(parent)

	var opts []aggregator.Option
	if cfg.Recorder != nil {
		opts = append(opts, aggregator.WithRecorder(cfg.Recorder))
	}
	agg := aggregator.New(sources, log, opts...)

	scheduler := polling.NewScheduler(agg, log)
	if cfg.CycleObserver != nil {
		scheduler.SetCycleObserver(cfg.CycleObserver)
	}

	fetcher := selection.NewDependentFetcher(agg, log)
	if cfg.StaleRecorder != nil {
		fetcher.SetStaleRecorder(cfg.StaleRecorder)
	}

	machine := selection.NewMachine(fetcher, log)

	s := &session{
		ctx:       ctx,
		cancel:    cancel,
		agg:       agg,
		scheduler: scheduler,
		fetcher:   fetcher,
		machine:   machine,
		done:      make(chan struct{}),
	}
	// Подписываемся до начала опроса, чтобы не пропустить первые обновления
	s.changes, _ = agg.Subscribe(64)
	s.transitions, _ = machine.Subscribe(16)
	return s
}

// start запускает опрос и обработку уведомлений
func (s *session) start(polled []port.DataSource, interval time.Duration, onChange func(aggregator.Change), onTransition func(selection.Transition)) {
	go s.watch(onChange, onTransition)
	s.handle = s.scheduler.Schedule(s.ctx, polled, interval)
}

func (s *session) watch(onChange func(aggregator.Change), onTransition func(selection.Transition)) {
	defer close(s.done)

	changes, transitions := s.changes, s.transitions
	for changes != nil || transitions != nil {
		select {
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			onChange(c)
		case tr, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			onTransition(tr)
		}
	}
}

// stop отменяет опрос и выбор; последующие ответы отбрасываются
func (s *session) stop() {
	if s.handle != nil {
		s.handle.Cancel()
	}
	s.machine.Close()
	s.agg.Close()
	s.cancel()
	<-s.done
}
