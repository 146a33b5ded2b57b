package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nko-map-backend/shared/notify"
)

type WebSocketHandler struct {
	hub    *notify.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *notify.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// GET /api/ws
// @Summary Live moderation events
// @Description Websocket stream of npo.submitted, npo.approved and npo.rejected events. Pass the bearer token as ?token=
// @Tags realtime
// @Param token query string true "Bearer token"
// @Success 101
// @Failure 401 {object} response.UnifiedResponse
// @Router /ws [get]
func (h *WebSocketHandler) Connect(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, user.ID); err != nil {
		h.logger.Debug("websocket upgrade failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
}
