package port

import "github.com/dreschagin/risk-dashboard/internal/application/dto"

// NotificationService доставляет обновления экранов подписчикам.
// Вызовы не должны блокировать цикл опроса.
type NotificationService interface {
	// Broadcast рассылает модель экрана view ("rca" или "ueba")
	Broadcast(view string, payload any)

	// BroadcastAlert рассылает alert всем подписчикам независимо от экрана
	BroadcastAlert(alert *dto.AlertDTO)
}
