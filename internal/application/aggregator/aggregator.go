package aggregator

import (
	"reflect"
	"sync"
	"time"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

const nilPayloadError = "invalid response body"

// SnapshotMap снимки всех источников экрана
type SnapshotMap map[valueobject.SourceID]entity.Snapshot

// Change уведомление об обновлении одного источника
type Change struct {
	Seq      uint64
	Source   valueobject.SourceID
	Snapshot entity.Snapshot
	// Changed false, если одинаковый payload оставил снимок прежним
	Changed bool
}

// Recorder получает события обновления снимков (metrics)
type Recorder interface {
	RecordUpdate(source valueobject.SourceID, status entity.SnapshotStatus, changed bool)
}

// Aggregator хранит снимки источников экрана и сливает в них результаты загрузок.
// Все изменения выполняются под одной блокировкой и заменяют снимок целиком.
type Aggregator struct {
	mu          sync.Mutex
	snapshots   SnapshotMap
	subscribers map[uint64]chan Change
	nextSub     uint64
	seq         uint64
	closed      bool

	now      func() time.Time
	recorder Recorder
	logger   *logger.Logger
}

// Option настраивает Aggregator
type Option func(*Aggregator)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithRecorder подключает запись метрик
func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) {
		a.recorder = r
	}
}

// New создает Aggregator; все источники стартуют в Pending
func New(sources []valueobject.SourceID, log *logger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		snapshots:   make(SnapshotMap, len(sources)),
		subscribers: make(map[uint64]chan Change),
		now:         time.Now,
		logger:      log,
	}
	for _, src := range sources {
		a.snapshots[src] = entity.NewPendingSnapshot(src, "")
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply применяет результат к источнику и возвращает копию всех снимков
func (a *Aggregator) Apply(source valueobject.SourceID, result Result) SnapshotMap {
	out, _ := a.ApplyIf(source, result, nil)
	return out
}

// ApplyIf применяет результат, только если guard (вычисляется под блокировкой) вернул true.
// applied=false для отброшенного результата, неизвестного источника и после Close.
func (a *Aggregator) ApplyIf(source valueobject.SourceID, result Result, guard func() bool) (SnapshotMap, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return a.copyLocked(), false
	}
	if guard != nil && !guard() {
		return a.copyLocked(), false
	}

	current, ok := a.snapshots[source]
	if !ok {
		a.logger.Warn("Result for unknown source ignored", "source", source)
		return a.copyLocked(), false
	}

	next, changed := a.transition(current, result)
	if changed {
		a.snapshots[source] = next
	}

	if a.recorder != nil {
		a.recorder.RecordUpdate(source, next.Status(), changed)
	}
	a.notifyLocked(source, next, changed)

	return a.copyLocked(), true
}

func (a *Aggregator) transition(current entity.Snapshot, result Result) (entity.Snapshot, bool) {
	if result.IsErr() {
		return current.Fail(result.Err), true
	}

	if result.Payload == nil {
		a.logger.Warn("Ok result without payload treated as parse failure", "source", current.Source())
		return current.Fail(nilPayloadError), true
	}

	// Повторный одинаковый ответ не трогает снимок (и fetchedAt)
	if current.IsReady() && reflect.DeepEqual(current.Payload(), result.Payload) {
		return current, false
	}

	return current.Succeed(result.Payload, a.now()), true
}

// Reset начинает новый жизненный цикл источников для subject (например выбранного агента)
func (a *Aggregator) Reset(subject string, sources ...valueobject.SourceID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	for _, src := range sources {
		if _, ok := a.snapshots[src]; !ok {
			a.logger.Warn("Reset of unknown source ignored", "source", src)
			continue
		}
		snap := entity.NewPendingSnapshot(src, subject)
		a.snapshots[src] = snap
		a.notifyLocked(src, snap, true)
	}
}

// Snapshot возвращает снимок одного источника
func (a *Aggregator) Snapshot(source valueobject.SourceID) (entity.Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap, ok := a.snapshots[source]
	return snap, ok
}

// Snapshots возвращает копию всех снимков
func (a *Aggregator) Snapshots() map[valueobject.SourceID]entity.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.copyLocked()
}

// Subscribe возвращает канал уведомлений и функцию отписки.
// Медленный подписчик теряет уведомления, а не блокирует загрузки.
func (a *Aggregator) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan Change, buffer)
	if a.closed {
		close(ch)
		return ch, func() {}
	}

	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if sub, ok := a.subscribers[id]; ok {
				delete(a.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close отключает агрегатор: последующие результаты игнорируются
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	for id, ch := range a.subscribers {
		close(ch)
		delete(a.subscribers, id)
	}
}

// Closed true после Close
func (a *Aggregator) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.closed
}

func (a *Aggregator) notifyLocked(source valueobject.SourceID, snap entity.Snapshot, changed bool) {
	a.seq++
	change := Change{Seq: a.seq, Source: source, Snapshot: snap, Changed: changed}

	for _, ch := range a.subscribers {
		select {
		case ch <- change:
		default:
			a.logger.Warn("Subscriber buffer full, change dropped", "source", source, "seq", change.Seq)
		}
	}
}

func (a *Aggregator) copyLocked() SnapshotMap {
	out := make(SnapshotMap, len(a.snapshots))
	for k, v := range a.snapshots {
		out[k] = v
	}
	return out
}
