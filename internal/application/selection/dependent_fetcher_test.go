package selection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/application/aggregator"
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// gatedProfileSource отдает профиль агента после явного разрешения
type gatedProfileSource struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
}

func newGatedProfileSource(subjects ...string) *gatedProfileSource {
	s := &gatedProfileSource{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 8),
	}
	for _, subj := range subjects {
		s.gates[subj] = make(chan struct{})
	}
	return s
}

func (s *gatedProfileSource) ID() valueobject.SourceID { return valueobject.SourceUEBAProfile }

func (s *gatedProfileSource) FetchFor(ctx context.Context, subject string) (any, error) {
	s.mu.Lock()
	gate := s.gates[subject]
	s.mu.Unlock()

	s.started <- subject
	if gate != nil {
		<-gate
	}
	return entity.AgentProfile{AgentID: subject, FailureRate: 0.1}, nil
}

func (s *gatedProfileSource) open(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.gates[subject])
}

type failingSource struct{}

func (failingSource) ID() valueobject.SourceID { return valueobject.SourceUEBATrend }

func (failingSource) FetchFor(context.Context, string) (any, error) {
	return nil, port.NewTransportError("Not Found", 404, nil)
}

type staleCounter struct {
	mu    sync.Mutex
	count int
}

func (c *staleCounter) RecordStale(valueobject.SourceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func waitSubject(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected fetch for %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch for %s did not start", want)
	}
}

func TestLastSelectionWins(t *testing.T) {
	agg := aggregator.New(valueobject.UEBAAgentSources(), logger.Nop())
	profile := newGatedProfileSource("A", "B")
	stale := &staleCounter{}

	fetcher := NewDependentFetcher(agg, logger.Nop())
	fetcher.Register(valueobject.SelectionAgent, profile)
	fetcher.SetStaleRecorder(stale)
	m := NewMachine(fetcher, logger.Nop())
	ctx := context.Background()

	if err := m.UserSelect(ctx, valueobject.AgentSelection("A")); err != nil {
		t.Fatalf("select A: %v", err)
	}
	waitSubject(t, profile.started, "A")

	if err := m.UserSelect(ctx, valueobject.AgentSelection("B")); err != nil {
		t.Fatalf("select B: %v", err)
	}
	waitSubject(t, profile.started, "B")

	// B отвечает раньше A
	profile.open("B")
	profile.open("A")
	fetcher.Wait()

	snap, _ := agg.Snapshot(valueobject.SourceUEBAProfile)
	got, ok := entity.PayloadAs[entity.AgentProfile](snap)
	if !ok || got.AgentID != "B" || snap.Subject() != "B" {
		t.Fatalf("expected profile of B, got %+v (subject %q)", snap.Payload(), snap.Subject())
	}
	if fetcher.StaleCount() != 1 || stale.count != 1 {
		t.Fatalf("expected one stale response, got %d/%d", fetcher.StaleCount(), stale.count)
	}
}

func TestDependentFetcherResetsAndRecordsFailures(t *testing.T) {
	agg := aggregator.New(valueobject.UEBAAgentSources(), logger.Nop())
	fetcher := NewDependentFetcher(agg, logger.Nop())
	fetcher.Register(valueobject.SelectionAgent, failingSource{})
	m := NewMachine(fetcher, logger.Nop())

	if err := m.UserSelect(context.Background(), valueobject.AgentSelection("agent-7")); err != nil {
		t.Fatalf("UserSelect() error = %v", err)
	}
	fetcher.Wait()

	trend, _ := agg.Snapshot(valueobject.SourceUEBATrend)
	if !trend.IsFailed() || trend.Error() != "Not Found" || trend.Subject() != "agent-7" {
		t.Fatalf("unexpected trend snapshot %+v", trend)
	}
	if fetcher.StaleCount() != 0 {
		t.Fatal("failure of the current selection is not stale")
	}
}

func TestNodeSelectionHasNoDependentFetches(t *testing.T) {
	agg := aggregator.New(valueobject.UEBAAgentSources(), logger.Nop())
	fetcher := NewDependentFetcher(agg, logger.Nop())
	fetcher.Register(valueobject.SelectionAgent, failingSource{})
	m := NewMachine(fetcher, logger.Nop())

	if err := m.UserSelect(context.Background(), valueobject.NodeSelection("Acme", valueobject.NodeSupplier)); err != nil {
		t.Fatalf("UserSelect() error = %v", err)
	}
	fetcher.Wait()

	trend, _ := agg.Snapshot(valueobject.SourceUEBATrend)
	if !trend.IsPending() {
		t.Fatalf("node selection must not touch agent sources, got %s", trend.Status())
	}
}

type instantProfileSource struct{}

func (instantProfileSource) ID() valueobject.SourceID { return valueobject.SourceUEBAProfile }

func (instantProfileSource) FetchFor(_ context.Context, subject string) (any, error) {
	return entity.AgentProfile{AgentID: subject}, nil
}

func TestDependentFetcherWaitDuringDispatch(t *testing.T) {
	agg := aggregator.New(valueobject.UEBAAgentSources(), logger.Nop())
	fetcher := NewDependentFetcher(agg, logger.Nop())
	fetcher.Register(valueobject.SelectionAgent, instantProfileSource{})
	always := func() bool { return true }

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				fetcher.Wait()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		fetcher.Dispatch(context.Background(), valueobject.AgentSelection("agent-7"), always)
	}
	close(stop)
	wg.Wait()

	done := make(chan struct{})
	go func() {
		fetcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after all fetches finished")
	}

	snap, _ := agg.Snapshot(valueobject.SourceUEBAProfile)
	if !snap.IsReady() || snap.Subject() != "agent-7" {
		t.Fatalf("unexpected profile snapshot %+v", snap)
	}
}
