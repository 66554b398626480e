package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/rylac/internal/apperrors"
	"go.uber.org/zap"
)

// RateLimiter счётчик попыток в окне (Redis)
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LoginRateLimit ограничивает попытки входа с одного IP.
// Если Redis недоступен, запрос пропускается.
func LoginRateLimit(rl RateLimiter, limit int, window time.Duration, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := rl.Allow(c.Request.Context(), "login:"+c.ClientIP(), limit, window)
		if err != nil {
			log.Warnw("login rate limit unavailable", "error", err)
			c.Next()
			return
		}
		if !ok {
			Abort(c, apperrors.RateLimited("too many login attempts, please try again later"))
			return
		}
		c.Next()
	}
}
