package handlers

import (
	"github.com/gin-gonic/gin"

	"chathub/internal/ws"
)

type WebSocketHandler struct {
	hub *ws.Hub
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// GET /ws upgrades and hands off. The connection starts unauthenticated;
// the client's first event must be setup{token}.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
