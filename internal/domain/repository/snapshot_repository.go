package repository

import (
	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// SnapshotReader определяет чтение текущих снимков источников (Port)
// Реализация находится в слое Application (aggregator)
type SnapshotReader interface {
	// Snapshot возвращает снимок источника; ok=false для неизвестного источника
	Snapshot(source valueobject.SourceID) (entity.Snapshot, bool)

	// Snapshots возвращает копию всех снимков
	Snapshots() map[valueobject.SourceID]entity.Snapshot
}
