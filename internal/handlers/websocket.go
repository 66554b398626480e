package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/middleware"
	ws "github.com/thereayou/rylac/internal/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnectionLimits ограничение частоты событий одного соединения
type ConnectionLimits struct {
	EventsPerSecond float64
	EventBurst      int
}

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub            *ws.Hub
	messageHandler *MessageHandler
	limits         ConnectionLimits
	upgrader       websocket.Upgrader
	log            *zap.SugaredLogger
}

// NewWebSocketHandler; пустой allowedOrigins пропускает любой Origin
func NewWebSocketHandler(hub *ws.Hub, messageHandler *MessageHandler, limits ConnectionLimits, allowedOrigins []string, log *zap.SugaredLogger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageHandler: messageHandler,
		limits:         limits,
		log:            log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket поднимает соединение уже аутентифицированного пользователя
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		respondError(c, apperrors.Authentication("authentication required"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debugw("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	var limiter *rate.Limiter
	if h.limits.EventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.limits.EventsPerSecond), h.limits.EventBurst)
	}

	client := ws.NewClient(h.hub, conn, userID, middleware.CurrentRole(c), limiter)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.messageHandler)
}
