package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/middleware"
	"github.com/thereayou/rylac/internal/services"
)

type HTTPMessageHandler struct {
	messages *services.MessageService
}

func NewHTTPMessageHandler(messages *services.MessageService) *HTTPMessageHandler {
	return &HTTPMessageHandler{messages: messages}
}

// GetConversation история диалога с пользователем :userId
func (h *HTTPMessageHandler) GetConversation(c *gin.Context) {
	limit := services.DefaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.messages.History(
		c.Request.Context(),
		middleware.CurrentUserID(c),
		c.Param("userId"),
		c.Query("before"),
		limit,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": page.Messages,
		"hasMore":  page.HasMore,
	})
}

// SendMessage JSON вариант message:send: те же правила и та же доставка получателю
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	var req services.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request body"))
		return
	}

	sent, err := h.messages.Send(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": sent})
}

// DeleteMessage то же удаление, что и message:delete по сокету
func (h *HTTPMessageHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.messages.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("messageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
