package selection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

var (
	ErrEmptySelection = errors.New("selection kind and id are required")
	ErrClosed         = errors.New("selection machine closed")
)

// Dispatcher запускает загрузку данных, зависящих от выбора.
// guard возвращает false, если выбор уже неактуален; его можно вызывать под любой блокировкой.
type Dispatcher interface {
	Dispatch(ctx context.Context, sel valueobject.Selection, guard func() bool)
}

// Transition переход в новое состояние выбора
type Transition struct {
	Generation uint64
	Selection  valueobject.Selection
	Auto       bool
}

// Machine конечный автомат Empty -> Selected(kind, id).
// Каждый переход увеличивает поколение и запускает ровно один цикл загрузки.
type Machine struct {
	mu           sync.Mutex
	current      valueobject.Selection
	everSelected bool
	subscribers  map[uint64]chan Transition
	nextSub      uint64

	generation atomic.Uint64
	closed     atomic.Bool

	dispatcher Dispatcher
	log        *logger.Logger
}

// NewMachine создает автомат в состоянии Empty
func NewMachine(dispatcher Dispatcher, log *logger.Logger) *Machine {
	return &Machine{
		current:     valueobject.NoSelection(),
		subscribers: make(map[uint64]chan Transition),
		dispatcher:  dispatcher,
		log:         log,
	}
}

// UserSelect всегда заменяет текущий выбор
func (m *Machine) UserSelect(ctx context.Context, sel valueobject.Selection) error {
	if sel.IsEmpty() {
		return ErrEmptySelection
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	m.transitionLocked(ctx, sel, false)
	return nil
}

// AutoSelectIfEmpty выбирает кандидата, только если выбора еще не было ни разу
func (m *Machine) AutoSelectIfEmpty(ctx context.Context, candidate valueobject.Selection) bool {
	if candidate.IsEmpty() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() || m.everSelected {
		return false
	}
	m.transitionLocked(ctx, candidate, true)
	return true
}

func (m *Machine) transitionLocked(ctx context.Context, sel valueobject.Selection, auto bool) {
	gen := m.generation.Add(1)
	m.current = sel
	m.everSelected = true

	m.log.Debug("Selection changed",
		"kind", sel.Kind,
		"id", sel.ID,
		"generation", gen,
		"auto", auto,
	)

	transition := Transition{Generation: gen, Selection: sel, Auto: auto}
	for _, ch := range m.subscribers {
		select {
		case ch <- transition:
		default:
			m.log.Warn("Selection subscriber buffer full, transition dropped", "generation", gen)
		}
	}

	guard := func() bool {
		return !m.closed.Load() && m.generation.Load() == gen
	}
	// Вызов под m.mu сохраняет порядок Reset между поколениями
	if m.dispatcher != nil {
		m.dispatcher.Dispatch(ctx, sel, guard)
	}
}

// Current текущий выбор и его поколение
func (m *Machine) Current() (valueobject.Selection, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current, m.generation.Load()
}

// IsCurrent true, если поколение все еще актуально
func (m *Machine) IsCurrent(gen uint64) bool {
	return !m.closed.Load() && m.generation.Load() == gen
}

// Subscribe уведомления о переходах
func (m *Machine) Subscribe(buffer int) (<-chan Transition, func()) {
	if buffer < 1 {
		buffer = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Transition, buffer)
	if m.closed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := m.subscribers[id]; ok {
				delete(m.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close делает все поколения неактуальными
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Swap(true) {
		return
	}
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
}
