// internal/handlers/websocket/ws_handler.go
package websocket

import (
	"net/http"
	"strings"

	xjwt "babylon-billing-service/internal/pkg/jwt"
	ws "babylon-billing-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	hub    *ws.Hub
	tokens *xjwt.Manager
	logger *zap.Logger
}

func NewHandler(hub *ws.Hub, tokens *xjwt.Manager, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, tokens: tokens, logger: logger}
}

// Serve handles GET /ws and upgrades the connection for payment event
// delivery. Browsers cannot set custom headers on websocket requests, so
// the token is accepted as a query parameter; the Authorization header
// still works for non-browser clients.
func (h *Handler) Serve(c *gin.Context) {
	claims, err := h.tokens.Verify(extractToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or missing token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, h.logger)
	h.hub.Register <- client
	client.Start()
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
