package port

import "context"

// EventPublisher публикует события экранов во внешний брокер (Port)
// Реализация в Infrastructure слое (NATS JetStream)
type EventPublisher interface {
	// PublishEvent отправляет событие; subject без префикса, например "ueba.attention"
	PublishEvent(ctx context.Context, subject string, event any) error

	// Close дожидается отправки и закрывает соединение
	Close() error
}
