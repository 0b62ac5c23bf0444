package handler

import (
	"chatroulette/backend/internal/auth"
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newUpgrader(anyOrigin bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Browsers send Origin on upgrades; other clients may omit it.
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return anyOrigin || origin == "" || sameHost(origin, r.Host)
		},
	}
}

// ServeWebSocket upgrades an authenticated request and registers the socket
// with the realtime hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID := auth.CallerID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("websocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(userID, conn, h.Hub)
	if err := h.Hub.Register(client); err != nil {
		_ = conn.Close()
		return
	}
	client.Run()
}
