package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/thereayou/rylac/internal/apperrors"
)

// respondError единый формат ошибок HTTP: {"success":false,"error":{code,message}}
func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{
		"success": false,
		"error":   apperrors.Public(err),
	})
}
