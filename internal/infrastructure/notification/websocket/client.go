package websocket

import (
	"fmt"
	"time"

	"github.com/dreschagin/risk-dashboard/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// ParseView проверяет фильтр экрана из query параметра: "", "rca" или "ueba"
func ParseView(raw string) (string, error) {
	switch raw {
	case "", MessageRCA, MessageUEBA:
		return raw, nil
	default:
		return "", fmt.Errorf("unknown view %q", raw)
	}
}

// Client подписчик одного браузера.
// С фильтром view получает только свой экран; alerts приходят всегда.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	view string

	// Закрывает только hub
	send chan Message

	logger *logger.Logger
}

// NewClient создает клиента; view пустой для подписки на оба экрана
func NewClient(hub *Hub, conn *websocket.Conn, view string, log *logger.Logger) *Client {
	if view != "" {
		log = log.With("view", view)
	}
	return &Client{
		conn:   conn,
		hub:    hub,
		view:   view,
		send:   make(chan Message, sendBuffer),
		logger: log,
	}
}

// Accepts true, если сообщение относится к подписке клиента
func (c *Client) Accepts(msgType string) bool {
	return c.view == "" || msgType == MessageAlert || msgType == c.view
}

// Serve регистрирует клиента и запускает pumps; возвращает управление сразу
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.writeLoop()
	go c.readLoop()
}

// readLoop нужен только для control frames и обнаружения закрытия
func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConn()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket closed unexpectedly", "error", err.Error())
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.writeFrame(websocket.CloseMessage, nil)
				return
			}
			if err := c.writeView(msg); err != nil {
				c.logger.Error("WebSocket write failed", err, "type", msg.Type)
				return
			}

		case <-ticker.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeView сериализует модель; ошибка сериализации не рвет соединение
func (c *Client) writeView(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("WebSocket marshal failed", err, "type", msg.Type)
		return nil
	}
	return c.writeFrame(websocket.TextMessage, data)
}

func (c *Client) writeFrame(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) closeConn() {
	// Обе pumps закрывают соединение, повторный Close возвращает ошибку
	_ = c.conn.Close()
}
