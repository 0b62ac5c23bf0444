package handler

import (
	"chatroulette/backend/internal/api/response"
	"chatroulette/backend/internal/auth"
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/log"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// Handler holds the dependencies of the HTTP API.
type Handler struct {
	Chat       *chathub.Service
	Hub        *chathub.ManagerService
	Auth       *auth.Manager
	ICEServers []webrtc.ICEServer

	upgrader websocket.Upgrader
}

func NewHandler(chat *chathub.Service, hub *chathub.ManagerService, authManager *auth.Manager, iceServers []webrtc.ICEServer) *Handler {
	return &Handler{Chat: chat, Hub: hub, Auth: authManager, ICEServers: iceServers, upgrader: newUpgrader(false)}
}

// respondError maps chat errors to HTTP statuses. Anything unknown is a 500
// and is logged with the request logger.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chathub.ErrUnauthenticated):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, chathub.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, chathub.ErrEmptyContent),
		errors.Is(err, chathub.ErrContentTooLong),
		errors.Is(err, chathub.ErrInvalidSignalType):
		response.BadRequest(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldUserID, auth.CallerID(c)).Msg("request failed")
		response.InternalError(c, "internal error")
	}
}
