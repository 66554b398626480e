package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/rylac/internal/apperrors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер фрейма: медиа до 1MB приходит в base64
	maxMessageSize = 2 << 20

	// Очередь отправки одного соединения
	sendQueueSize = 256

	// Сколько может идти обработка одного события
	eventTimeout = 10 * time.Second
)

// ClientMessageHandler обрабатывает события одного соединения
type ClientMessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *Message) error
}

type Client struct {
	ID     uuid.UUID
	UserID string
	Role   string
	Conn   *websocket.Conn
	Hub    *Hub

	send    chan []byte
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, role string, limiter *rate.Limiter) *Client {
	id := uuid.New()
	return &Client{
		ID:      id,
		UserID:  userID,
		Role:    role,
		Conn:    conn,
		Hub:     hub,
		send:    make(chan []byte, sendQueueSize),
		limiter: limiter,
		log:     hub.log.With("conn_id", id.String(), "user_id", userID),
	}
}

// Enqueue кладёт фрейм в очередь без блокировки
func (c *Client) Enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// close закрывает очередь; WritePump после этого отправит close-фрейм
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump читает события клиента и обрабатывает их строго по порядку
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warnw("websocket read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
			c.SendError("", apperrors.Validation(ErrInvalidMessage.Error()))
			continue
		}

		if msg.Type == TypePong {
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.reply(&msg, apperrors.Validation(ErrRateLimited.Error()))
			continue
		}

		if handler != nil {
			c.dispatch(handler, &msg)
		}
	}
}

// dispatch превращает ошибку или панику одного события в ответ этому соединению
func (c *Client) dispatch(handler ClientMessageHandler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("panic in event handler", "type", msg.Type, "panic", r)
			c.reply(msg, apperrors.Unavailable(fmt.Errorf("panic: %v", r)))
		}
	}()

	ctx, cancel := context.WithTimeout(c.Hub.Context(), eventTimeout)
	defer cancel()

	if err := handler.HandleMessage(ctx, c, msg); err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnavailable {
			c.log.Errorw("event failed", "type", msg.Type, "error", err)
		} else {
			c.log.Debugw("event rejected", "type", msg.Type, "error", err)
		}
		c.reply(msg, err)
	}
}

func (c *Client) reply(msg *Message, err error) {
	if msg.AckID != "" || msg.Type.ExpectsAck() {
		c.SendAck(msg.AckID, AckPayload{Success: false, Error: apperrors.Public(err)})
		return
	}
	c.SendError(msg.AckID, err)
}

// WritePump единственный писатель в сокет
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendMessage(msgType MessageType, ackID string, data interface{}) error {
	frame, err := Encode(msgType, ackID, data)
	if err != nil {
		return err
	}
	if err := c.Enqueue(frame); err != nil {
		if err == ErrClientQueueFull {
			c.log.Warnw("send queue full, frame dropped", "type", msgType)
		}
		return err
	}
	return nil
}

func (c *Client) SendAck(ackID string, payload AckPayload) {
	_ = c.SendMessage(TypeAck, ackID, payload)
}

func (c *Client) SendError(ackID string, err error) {
	_ = c.SendMessage(TypeError, ackID, apperrors.Public(err))
}
