package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/rylac/internal/config"
	"github.com/thereayou/rylac/internal/handlers"
	"github.com/thereayou/rylac/internal/middleware"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type endpoints struct {
	auth    *handlers.AuthHandler
	users   *handlers.UserHandler
	message *handlers.HTTPMessageHandler
	admin   *handlers.AdminHandler
	ws      *handlers.WebSocketHandler

	authenticator middleware.Authenticator
	cookies       middleware.CookieConfig
	limiter       middleware.RateLimiter
	db            pinger
	log           *zap.SugaredLogger
}

func APIEndpoints(r *gin.Engine, e endpoints, cfg *config.Config) {
	authRequired := middleware.AuthMiddleware(e.authenticator, e.cookies, e.log)

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := e.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Auth endpoints
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", e.auth.Register)
		auth.POST("/login", middleware.LoginRateLimit(e.limiter, cfg.LoginRateLimit, cfg.LoginRateWindow, e.log), e.auth.Login)
		auth.POST("/refresh", e.auth.Refresh)
		auth.POST("/logout", authRequired, e.auth.Logout)
		auth.GET("/me", authRequired, e.auth.Me)
	}

	users := r.Group("/api/users", authRequired)
	{
		users.GET("/search", e.users.SearchUsers)
		users.GET("/contacts", e.users.Contacts)
		users.PUT("/me", e.users.UpdateMe)
		users.GET("/:identifier", e.users.GetUser)
	}

	messages := r.Group("/api/messages", authRequired)
	{
		messages.POST("/send", e.message.SendMessage)
		messages.GET("/:userId", e.message.GetConversation)
		messages.DELETE("/:messageId", e.message.DeleteMessage)
	}

	admin := r.Group("/api/admin", authRequired, middleware.RequireAdmin())
	{
		admin.GET("/stats", e.admin.Stats)
		admin.GET("/users", e.admin.ListUsers)
		admin.DELETE("/users/:userId", e.admin.DeleteUser)
		admin.PUT("/users/:userId/role", e.admin.SetRole)
	}

	r.GET("/ws", middleware.WSAuthMiddleware(e.authenticator), e.ws.HandleWebSocket)
}
