package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/apperr"
)

// Recovery turns a panic into a 500 envelope.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.String("request_id", c.GetString(response.RequestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		response.Error(c, apperr.Internal("Внутренняя ошибка сервера", fmt.Errorf("panic: %v", recovered)))
	})
}
