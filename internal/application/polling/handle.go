package polling

import (
	"sync"
	"sync/atomic"
)

// CancelHandle управляет запущенным расписанием опроса
type CancelHandle struct {
	canceled atomic.Bool
	once     sync.Once
	stop     chan struct{}
	refresh  chan struct{}
	done     chan struct{}
}

func newCancelHandle() *CancelHandle {
	return &CancelHandle{
		stop:    make(chan struct{}),
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Cancel останавливает будущие циклы. Уже начатые загрузки завершатся,
// но их результаты будут отброшены. Повторный вызов безопасен.
func (h *CancelHandle) Cancel() {
	h.once.Do(func() {
		h.canceled.Store(true)
		close(h.stop)
	})
}

// Canceled true после Cancel или отмены родительского контекста
func (h *CancelHandle) Canceled() bool {
	return h.canceled.Load()
}

// Refresh запрашивает внеочередной цикл; false если расписание отменено.
// Несколько запросов до начала цикла схлопываются в один.
func (h *CancelHandle) Refresh() bool {
	if h.Canceled() {
		return false
	}
	select {
	case h.refresh <- struct{}{}:
	default:
	}
	return true
}

// Done закрывается, когда цикл расписания завершился
func (h *CancelHandle) Done() <-chan struct{} {
	return h.done
}
