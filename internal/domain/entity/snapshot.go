package entity

import (
	"time"

	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// SnapshotStatus состояние жизненного цикла снимка
type SnapshotStatus string

const (
	StatusPending SnapshotStatus = "pending"
	StatusReady   SnapshotStatus = "ready"
	StatusFailed  SnapshotStatus = "failed"
)

const unknownError = "unknown error"

// Snapshot последнее известное состояние одного источника данных.
// Иммутабелен: переходы возвращают новый Snapshot.
type Snapshot struct {
	source    valueobject.SourceID
	subject   string
	status    SnapshotStatus
	payload   any
	fetchedAt time.Time
	err       string
}

// NewPendingSnapshot создает снимок в состоянии Pending.
// subject указывает, для какого выбора собраны данные (пусто для опрашиваемых источников).
func NewPendingSnapshot(source valueobject.SourceID, subject string) Snapshot {
	return Snapshot{
		source:  source,
		subject: subject,
		status:  StatusPending,
	}
}

// Succeed переводит снимок в Ready с новым payload
func (s Snapshot) Succeed(payload any, at time.Time) Snapshot {
	return Snapshot{
		source:    s.source,
		subject:   s.subject,
		status:    StatusReady,
		payload:   payload,
		fetchedAt: at,
	}
}

// Fail переводит снимок в Failed, сохраняя последний успешный payload
func (s Snapshot) Fail(message string) Snapshot {
	if message == "" {
		message = unknownError
	}
	return Snapshot{
		source:    s.source,
		subject:   s.subject,
		status:    StatusFailed,
		payload:   s.payload,
		fetchedAt: s.fetchedAt,
		err:       message,
	}
}

// Source возвращает идентификатор источника
func (s Snapshot) Source() valueobject.SourceID {
	return s.source
}

// Subject возвращает id выбора, к которому относятся данные
func (s Snapshot) Subject() string {
	return s.subject
}

// Status возвращает состояние
func (s Snapshot) Status() SnapshotStatus {
	return s.status
}

// Payload возвращает данные (может быть nil)
func (s Snapshot) Payload() any {
	return s.payload
}

// FetchedAt время принятия payload
func (s Snapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// Error сообщение последней ошибки
func (s Snapshot) Error() string {
	return s.err
}

// Domain Methods

// IsPending true до первого ответа источника
func (s Snapshot) IsPending() bool {
	return s.status == StatusPending
}

// IsReady true после успешной загрузки
func (s Snapshot) IsReady() bool {
	return s.status == StatusReady
}

// IsFailed true после ошибки
func (s Snapshot) IsFailed() bool {
	return s.status == StatusFailed
}

// IsStale true, если последняя попытка упала, но есть данные от предыдущей
func (s Snapshot) IsStale() bool {
	return s.status == StatusFailed && s.payload != nil
}

// HasData true, если payload можно показывать
func (s Snapshot) HasData() bool {
	return s.payload != nil
}

// PayloadAs приводит payload к конкретному типу
func PayloadAs[T any](s Snapshot) (T, bool) {
	v, ok := s.payload.(T)
	return v, ok
}
