package websocket

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/rylac/internal/presence"
	"go.uber.org/zap"
)

const (
	registryShards = 32

	// Прикладной ping поверх websocket ping/pong
	heartbeatPeriod = 30 * time.Second
)

// users: userID -> все живые соединения пользователя (его личный канал)
type registryShard struct {
	mu    sync.RWMutex
	users map[string]map[uuid.UUID]*Client
}

type Hub struct {
	shards   [registryShards]registryShard
	presence *presence.Tracker
	log      *zap.SugaredLogger

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает Hub; store получает isOnline/lastSeen на переходах присутствия
func NewHub(store presence.Store, log *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range h.shards {
		h.shards[i].users = make(map[string]map[uuid.UUID]*Client)
	}
	h.presence = presence.NewTracker(store, h.broadcastStatus, log)
	return h
}

func (h *Hub) Context() context.Context { return h.ctx }

func (h *Hub) shardFor(userID string) *registryShard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(userID))
	return &h.shards[f.Sum32()%registryShards]
}

// Run шлёт прикладной ping до остановки hub
func (h *Hub) Run() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub и снимает все соединения: трекер успевает записать offline
func (h *Hub) Stop() {
	h.cancel()

	var clients []*Client
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.RLock()
		for _, conns := range s.users {
			for _, client := range conns {
				clients = append(clients, client)
			}
		}
		s.mu.RUnlock()
	}

	for _, client := range clients {
		h.Unregister(client)
	}
}

// Register подключает соединение к каналу пользователя, затем отмечает присутствие
func (h *Hub) Register(client *Client) {
	s := h.shardFor(client.UserID)
	s.mu.Lock()
	conns, ok := s.users[client.UserID]
	if !ok {
		conns = make(map[uuid.UUID]*Client)
		s.users[client.UserID] = conns
	}
	conns[client.ID] = client
	s.mu.Unlock()

	client.log.Infow("client registered")
	h.presence.OnConnect(client.UserID, client.ID.String())
}

// Unregister идемпотентен: ReadPump и Stop могут вызвать его оба
func (h *Hub) Unregister(client *Client) {
	s := h.shardFor(client.UserID)
	s.mu.Lock()
	conns, ok := s.users[client.UserID]
	if ok {
		if _, known := conns[client.ID]; !known {
			ok = false
		} else {
			delete(conns, client.ID)
			if len(conns) == 0 {
				delete(s.users, client.UserID)
			}
		}
	}
	s.mu.Unlock()

	client.close()
	if !ok {
		return
	}

	client.log.Infow("client unregistered")
	h.presence.OnDisconnect(client.UserID, client.ID.String())
}

// SendToUser кладёт фрейм во все соединения пользователя, возвращает число получателей
func (h *Hub) SendToUser(userID string, frame []byte) int {
	s := h.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for _, client := range s.users[userID] {
		if err := client.Enqueue(frame); err != nil {
			if err == ErrClientQueueFull {
				client.log.Warnw("send queue full, frame dropped")
			}
			continue
		}
		delivered++
	}
	return delivered
}

// Deliver кодирует событие и отправляет в канал пользователя
func (h *Hub) Deliver(userID string, msgType MessageType, data interface{}) int {
	frame, err := Encode(msgType, "", data)
	if err != nil {
		h.log.Errorw("encode event", "type", msgType, "error", err)
		return 0
	}
	return h.SendToUser(userID, frame)
}

// Broadcast отправляет фрейм всем соединениям
func (h *Hub) Broadcast(frame []byte) {
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.RLock()
		for _, conns := range s.users {
			for _, client := range conns {
				if err := client.Enqueue(frame); err == ErrClientQueueFull {
					client.log.Warnw("send queue full, broadcast dropped")
				}
			}
		}
		s.mu.RUnlock()
	}
}

// DisconnectUser закрывает все соединения пользователя
func (h *Hub) DisconnectUser(userID string) int {
	s := h.shardFor(userID)
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.users[userID]))
	for _, client := range s.users[userID] {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		client.close()
	}
	return len(clients)
}

// broadcastStatus вызывается трекером под локом шарда присутствия
func (h *Hub) broadcastStatus(status presence.Status) {
	frame, err := Encode(TypeStatusChange, "", status)
	if err != nil {
		h.log.Errorw("encode status", "user_id", status.UserID, "error", err)
		return
	}
	h.Broadcast(frame)
}

func (h *Hub) ping() {
	frame, err := Encode(TypePing, "", nil)
	if err != nil {
		return
	}
	h.Broadcast(frame)
}

func (h *Hub) IsOnline(userID string) bool {
	return h.presence.IsOnline(userID)
}

func (h *Hub) OnlineCount() int {
	return h.presence.OnlineCount()
}
