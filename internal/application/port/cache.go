package port

import (
	"context"
	"errors"
)

// ErrCacheMiss ключ отсутствует или истек
var ErrCacheMiss = errors.New("cache miss")

// Cache хранит сырые JSON ответы аналитики; TTL задает реализация
type Cache interface {
	// Get возвращает ErrCacheMiss, если ключа нет
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
