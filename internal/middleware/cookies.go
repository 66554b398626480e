package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type CookieConfig struct {
	Secure bool
}

func SetAccessCookie(c *gin.Context, cfg CookieConfig, token string, exp time.Time) {
	setCookie(c, cfg, AccessCookie, token, exp)
}

func SetRefreshCookie(c *gin.Context, cfg CookieConfig, token string, exp time.Time) {
	setCookie(c, cfg, RefreshCookie, token, exp)
}

func ClearAuthCookies(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookie, "", -1, "/", "", cfg.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", cfg.Secure, true)
}

func setCookie(c *gin.Context, cfg CookieConfig, name, value string, exp time.Time) {
	maxAge := int(time.Until(exp).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", cfg.Secure, true)
}
