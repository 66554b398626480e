package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/middleware"
	"github.com/thereayou/rylac/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// SearchUsers поиск по userId, username или displayName
func (h *UserHandler) SearchUsers(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), middleware.CurrentUserID(c), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// Contacts последние диалоги с числом непрочитанных
func (h *UserHandler) Contacts(c *gin.Context) {
	contacts, err := h.users.Contacts(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contacts": contacts})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request body"))
		return
	}

	profile, err := h.users.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}
