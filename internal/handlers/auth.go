package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/handlers/dto"
	"github.com/thereayou/rylac/internal/middleware"
	"github.com/thereayou/rylac/internal/services"
	"github.com/thereayou/rylac/pkg/auth"
)

type AuthHandler struct {
	auth    *services.AuthService
	cookies middleware.CookieConfig
}

func NewAuthHandler(authSvc *services.AuthService, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{auth: authSvc, cookies: cookies}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("username, password and displayName are required"))
		return
	}

	session, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.writeSession(c, http.StatusCreated, session)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("username and password are required"))
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.writeSession(c, http.StatusOK, session)
}

// Refresh выдаёт новый access по refresh cookie (или полю refreshToken)
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, _ := c.Cookie(middleware.RefreshCookie)
	if refresh == "" {
		var req dto.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		refresh = req.RefreshToken
	}

	session, err := h.auth.Refresh(c.Request.Context(), refresh)
	if err != nil {
		middleware.ClearAuthCookies(c, h.cookies)
		respondError(c, err)
		return
	}

	h.writeSession(c, http.StatusOK, session)
}

// Logout ставит access в черный список и отзывает refresh
func (h *AuthHandler) Logout(c *gin.Context) {
	access, _ := c.Cookie(middleware.AccessCookie)
	if access == "" {
		access, _ = auth.ExtractTokenFromHeader(c.Request)
	}
	refresh, _ := c.Cookie(middleware.RefreshCookie)
	if refresh == "" {
		var req dto.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		refresh = req.RefreshToken
	}

	if err := h.auth.Logout(c.Request.Context(), middleware.CurrentUserID(c), access, refresh); err != nil {
		respondError(c, err)
		return
	}

	middleware.ClearAuthCookies(c, h.cookies)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	profile := user.Public()
	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}

func (h *AuthHandler) writeSession(c *gin.Context, status int, s *services.Session) {
	middleware.SetAccessCookie(c, h.cookies, s.AccessToken, s.AccessExpires)

	resp := dto.AuthResponse{
		Success:       true,
		AccessToken:   s.AccessToken,
		AccessExpires: s.AccessExpires,
	}
	if s.RefreshToken != "" {
		middleware.SetRefreshCookie(c, h.cookies, s.RefreshToken, s.RefreshExpires)
		resp.RefreshToken = s.RefreshToken
		resp.RefreshExpires = &s.RefreshExpires
	}
	if s.User != nil {
		profile := s.User.Public()
		resp.User = &profile
	}
	c.JSON(status, resp)
}
