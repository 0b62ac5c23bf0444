package handler

import (
	"chatroulette/backend/internal/api/response"
	"chatroulette/backend/internal/auth"
	"chatroulette/backend/internal/log"

	"github.com/gin-gonic/gin"
)

type anonIDResponse struct {
	Token  string `json:"token"`
	AnonID string `json:"anon_id"`
}

// GetAnonID creates an anonymous identity and returns its token.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := auth.NewAnonID()

	token, err := h.Auth.Issue(anonID)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to issue token")
		response.InternalError(c, "failed to create token")
		return
	}

	c.Set(log.FieldUserID, anonID)
	response.Created(c, anonIDResponse{Token: token, AnonID: anonID})
}
