package port

import (
	"context"

	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

// DataSource опрашиваемый источник данных (Port)
// Реализация в Infrastructure слое (analytics client)
type DataSource interface {
	// ID возвращает логический идентификатор источника
	ID() valueobject.SourceID

	// Fetch загружает и разбирает payload. Ошибки должны быть *FetchError.
	Fetch(ctx context.Context) (any, error)
}

// DependentSource источник, зависящий от выбранной сущности
type DependentSource interface {
	ID() valueobject.SourceID

	// FetchFor загружает данные для subject (например id агента)
	FetchFor(ctx context.Context, subject string) (any, error)
}
