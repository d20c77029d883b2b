package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/risk-dashboard/internal/application/dto"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// Типы сообщений для клиента
const (
	MessageRCA   = "rca"
	MessageUEBA  = "ueba"
	MessageAlert = "alert"
)

// Message сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"` // "rca", "ueba" или "alert"
	Data interface{} `json:"data"`
}

// SnapshotProvider возвращает текущие модели экранов для нового клиента
type SnapshotProvider func() []Message

// Hub управляет WebSocket клиентами и рассылает сообщения
// Реализует интерфейс port.NotificationService
type Hub struct {
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Mutex для защиты clients map
	mu sync.RWMutex

	provider SnapshotProvider
	logger   *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// SetSnapshotProvider задает источник начального состояния; вызывать до Run
func (h *Hub) SetSnapshotProvider(p SnapshotProvider) {
	h.provider = p
}

// Run запускает hub (должен быть запущен в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)
			h.sendInitial(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// sendInitial новый клиент сразу получает текущие модели экранов
func (h *Hub) sendInitial(client *Client) {
	if h.provider == nil {
		return
	}
	for _, msg := range h.provider() {
		if !client.Accepts(msg.Type) {
			continue
		}
		if !h.deliver(client, msg) {
			return
		}
	}
}

func (h *Hub) fanOut(msg Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.Accepts(msg.Type) {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.deliver(client, msg)
	}
	if msg.Type == MessageAlert {
		h.logger.Debug("Alert broadcasted to clients", "clients", len(clients))
	}
}

// deliver отключает клиента с переполненным каналом; false если клиент отключен
func (h *Hub) deliver(client *Client, msg Message) bool {
	select {
	case client.send <- msg:
		return true
	default:
	}

	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	h.logger.Warn("Client channel full, disconnected")
	return false
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Register регистрирует нового клиента; после остановки hub клиент сразу закрывается
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast отправляет модель экрана всем клиентам (реализация port.NotificationService)
func (h *Hub) Broadcast(view string, payload any) {
	h.enqueue(Message{Type: view, Data: payload})
}

// BroadcastAlert отправляет alert всем клиентам (реализация port.NotificationService)
func (h *Hub) BroadcastAlert(alert *dto.AlertDTO) {
	h.enqueue(Message{Type: MessageAlert, Data: alert})
}

func (h *Hub) enqueue(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", msg.Type)
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.NotificationService)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
