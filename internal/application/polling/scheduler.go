package polling

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreschagin/risk-dashboard/internal/application/aggregator"
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// DefaultInterval период опроса по умолчанию
const DefaultInterval = 30 * time.Second

// ResultSink принимает результаты загрузок (Aggregator)
type ResultSink interface {
	ApplyIf(source valueobject.SourceID, result aggregator.Result, guard func() bool) (aggregator.SnapshotMap, bool)
}

// CycleObserver получает отчет каждого завершенного цикла
type CycleObserver interface {
	ObserveCycle(report CycleReport)
}

// Scheduler опрашивает источники по расписанию.
// На каждый источник допускается не более одной активной загрузки.
type Scheduler struct {
	sink     ResultSink
	log      *logger.Logger
	observer CycleObserver

	mu       sync.Mutex
	inFlight map[valueobject.SourceID]struct{}
}

// NewScheduler создает новый Scheduler
func NewScheduler(sink ResultSink, log *logger.Logger) *Scheduler {
	return &Scheduler{
		sink:     sink,
		log:      log,
		inFlight: make(map[valueobject.SourceID]struct{}),
	}
}

// SetCycleObserver подключает наблюдателя циклов (metrics)
func (s *Scheduler) SetCycleObserver(o CycleObserver) {
	s.observer = o
}

// Schedule запускает первый цикл сразу, затем каждые interval.
// Цикл расписания не ждет завершения предыдущего цикла.
func (s *Scheduler) Schedule(ctx context.Context, sources []port.DataSource, interval time.Duration) *CancelHandle {
	if interval <= 0 {
		interval = DefaultInterval
	}

	h := newCancelHandle()
	guard := func() bool { return !h.Canceled() }

	// Загрузки не прерываются отменой, их результаты отбрасывает guard
	fetchCtx := context.WithoutCancel(ctx)

	start := func() {
		go func() {
			s.observe(s.runCycle(fetchCtx, sources, guard))
		}()
	}

	go func() {
		defer close(h.done)

		start()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				h.Cancel()
				return
			case <-h.stop:
				return
			case <-ticker.C:
				start()
			case <-h.refresh:
				start()
			}
		}
	}()

	return h
}

// RunOnce выполняет один цикл и ждет завершения всех загрузок
func (s *Scheduler) RunOnce(ctx context.Context, sources []port.DataSource) CycleReport {
	report := s.runCycle(ctx, sources, nil)
	s.observe(report)
	return report
}

func (s *Scheduler) runCycle(ctx context.Context, sources []port.DataSource, guard func() bool) CycleReport {
	startedAt := time.Now()
	outcomes := make([]Outcome, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		id := src.ID()
		if !s.acquire(id) {
			outcomes[i] = Outcome{Source: id, Status: OutcomeSkipped}
			s.log.Debug("Fetch still in flight, source skipped", "source", id)
			continue
		}

		g.Go(func() error {
			defer s.release(id)
			outcomes[i] = s.fetch(ctx, src, guard)
			return nil
		})
	}
	_ = g.Wait()

	report := CycleReport{
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Outcomes:  outcomes,
	}

	s.log.Debug("Poll cycle completed",
		"sources", len(sources),
		"failed", report.Count(OutcomeFailed),
		"skipped", report.Count(OutcomeSkipped),
		"discarded", report.Count(OutcomeDiscarded),
		"duration", report.Duration.String(),
	)

	return report
}

func (s *Scheduler) fetch(ctx context.Context, src port.DataSource, guard func() bool) Outcome {
	id := src.ID()
	start := time.Now()

	payload, err := src.Fetch(ctx)

	result := aggregator.Ok(payload)
	status := OutcomeOK
	if err != nil {
		result = aggregator.Err(port.DisplayMessage(err))
		status = OutcomeFailed
	}

	if _, applied := s.sink.ApplyIf(id, result, guard); !applied {
		s.log.Debug("Fetch result discarded", "source", id)
		status = OutcomeDiscarded
	} else if err != nil {
		s.log.Warn("Source fetch failed", "source", id, "error", err.Error())
	}

	return Outcome{
		Source:   id,
		Status:   status,
		Error:    result.Err,
		Duration: time.Since(start),
	}
}

func (s *Scheduler) acquire(id valueobject.SourceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id valueobject.SourceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, id)
}

func (s *Scheduler) observe(report CycleReport) {
	if s.observer != nil {
		s.observer.ObserveCycle(report)
	}
}
