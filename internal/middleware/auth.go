package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/models"
	"github.com/thereayou/rylac/internal/services"
	"github.com/thereayou/rylac/pkg/auth"
	"go.uber.org/zap"
)

const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// Authenticator общая проверка access/refresh для HTTP и websocket
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken, refreshToken string) (*services.Identity, error)
	IssueAccess(id *services.Identity) (string, time.Time, error)
}

// AuthMiddleware проверяет access токен из cookie или заголовка, при неудаче refresh.
// Если личность подтверждена refresh-токеном, выдаёт новую access cookie.
func AuthMiddleware(a Authenticator, cookies CookieConfig, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		access := accessFromCookieOrHeader(c)
		refresh, _ := c.Cookie(RefreshCookie)

		id, err := a.Authenticate(c.Request.Context(), access, refresh)
		if err != nil {
			Abort(c, err)
			return
		}

		if id.ViaRefresh {
			token, exp, err := a.IssueAccess(id)
			if err != nil {
				log.Warnw("reissue access token", "user_id", id.UserID, "error", err)
			} else {
				SetAccessCookie(c, cookies, token, exp)
			}
		}

		c.Set(UserIDKey, id.UserID)
		c.Set(RoleKey, id.Role)
		c.Next()
	}
}

// WSAuthMiddleware специальный middleware для WebSocket: ошибка = 401 без апгрейда
func WSAuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		access := accessFromCookieOrHeader(c)
		if access == "" {
			access = c.Query("token")
		}
		refresh, _ := c.Cookie(RefreshCookie)
		if refresh == "" {
			refresh = c.Query("refresh_token")
		}

		id, err := a.Authenticate(c.Request.Context(), access, refresh)
		if err != nil {
			Abort(c, err)
			return
		}

		c.Set(UserIDKey, id.UserID)
		c.Set(RoleKey, id.Role)
		c.Next()
	}
}

// RequireAdmin пропускает только роль admin; ставится после AuthMiddleware
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != models.RoleAdmin {
			Abort(c, apperrors.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

// CurrentUserID id пользователя, установленный middleware
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func CurrentRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}

func accessFromCookieOrHeader(c *gin.Context) string {
	if token, err := c.Cookie(AccessCookie); err == nil && token != "" {
		return token
	}
	if token, err := auth.ExtractTokenFromHeader(c.Request); err == nil {
		return token
	}
	return ""
}

// Abort отвечает ошибкой в общем формате и прерывает цепочку
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{
		"success": false,
		"error":   apperrors.Public(err),
	})
}
