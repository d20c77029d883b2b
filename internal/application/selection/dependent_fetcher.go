package selection

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dreschagin/risk-dashboard/internal/application/aggregator"
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// Sink хранилище снимков, в которое пишутся зависимые данные
type Sink interface {
	Reset(subject string, sources ...valueobject.SourceID)
	ApplyIf(source valueobject.SourceID, result aggregator.Result, guard func() bool) (aggregator.SnapshotMap, bool)
}

// StaleRecorder считает отброшенные устаревшие ответы
type StaleRecorder interface {
	RecordStale(source valueobject.SourceID)
}

// DependentFetcher реализует Dispatcher: загружает данные для выбранной сущности
type DependentFetcher struct {
	sink     Sink
	sources  map[valueobject.SelectionKind][]port.DependentSource
	log      *logger.Logger
	recorder StaleRecorder

	inflight inflight
	stale    atomic.Uint64
}

// inflight счетчик активных загрузок. В отличие от sync.WaitGroup допускает
// новые загрузки во время wait.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (c *inflight) add(k int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		c.idle = make(chan struct{})
	}
	c.n += k
}

func (c *inflight) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
	if c.n == 0 {
		close(c.idle)
	}
}

// wait возвращается, когда активных загрузок не осталось
func (c *inflight) wait() {
	c.mu.Lock()
	if c.n == 0 {
		c.mu.Unlock()
		return
	}
	idle := c.idle
	c.mu.Unlock()
	<-idle
}

// NewDependentFetcher создает новый DependentFetcher
func NewDependentFetcher(sink Sink, log *logger.Logger) *DependentFetcher {
	return &DependentFetcher{
		sink:    sink,
		sources: make(map[valueobject.SelectionKind][]port.DependentSource),
		log:     log,
	}
}

// Register привязывает источники к типу выбора
func (f *DependentFetcher) Register(kind valueobject.SelectionKind, sources ...port.DependentSource) {
	f.sources[kind] = append(f.sources[kind], sources...)
}

// SetStaleRecorder подключает счетчик устаревших ответов
func (f *DependentFetcher) SetStaleRecorder(r StaleRecorder) {
	f.recorder = r
}

// Dispatch сбрасывает зависимые снимки и запускает загрузки параллельно.
// Ответы, для которых guard вернул false, отбрасываются без ошибки.
func (f *DependentFetcher) Dispatch(ctx context.Context, sel valueobject.Selection, guard func() bool) {
	sources := f.sources[sel.Kind]
	if len(sources) == 0 {
		return
	}

	ids := make([]valueobject.SourceID, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID())
	}
	f.sink.Reset(sel.ID, ids...)

	// Загрузка переживает HTTP запрос, который ее вызвал
	fetchCtx := context.WithoutCancel(ctx)

	f.inflight.add(len(sources))
	for _, src := range sources {
		go func() {
			defer f.inflight.done()
			f.fetch(fetchCtx, src, sel.ID, guard)
		}()
	}
}

func (f *DependentFetcher) fetch(ctx context.Context, src port.DependentSource, subject string, guard func() bool) {
	payload, err := src.FetchFor(ctx, subject)

	result := aggregator.Ok(payload)
	if err != nil {
		result = aggregator.Err(port.DisplayMessage(err))
	}

	if _, applied := f.sink.ApplyIf(src.ID(), result, guard); !applied {
		f.stale.Add(1)
		if f.recorder != nil {
			f.recorder.RecordStale(src.ID())
		}
		f.log.Debug("Response dropped",
			"source", src.ID(),
			"subject", subject,
			"reason", port.ErrStaleSelection.Error(),
		)
		return
	}

	if err != nil {
		f.log.Warn("Dependent fetch failed", "source", src.ID(), "subject", subject, "error", err.Error())
	}
}

// Wait ждет момента, когда не останется активных загрузок.
// Безопасен при одновременных Dispatch.
func (f *DependentFetcher) Wait() {
	f.inflight.wait()
}

// StaleCount количество отброшенных ответов
func (f *DependentFetcher) StaleCount() uint64 {
	return f.stale.Load()
}
