package handler

import (
	"chatroulette/backend/internal/api/response"
	"chatroulette/backend/internal/auth"
	"chatroulette/backend/internal/models"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

type joinRequest struct {
	WantsVideo bool `json:"wants_video"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendSignalRequest struct {
	ToUserID string            `json:"to_user_id"`
	Type     models.SignalType `json:"type"`
	Payload  string            `json:"payload"`
}

type waitingResponse struct {
	Waiting bool `json:"waiting"`
}

// JoinQueue matches the caller or queues them. An empty body means text only.
func (h *Handler) JoinQueue(c *gin.Context) {
	var req joinRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, "invalid payload")
			return
		}
	}

	res, err := h.Chat.Matcher.Join(c.Request.Context(), auth.CallerID(c), req.WantsVideo)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *Handler) LeaveChat(c *gin.Context) {
	if err := h.Chat.Matcher.Leave(c.Request.Context(), auth.CallerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) CurrentSession(c *gin.Context) {
	session, err := h.Chat.Sessions.CurrentSession(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *Handler) IsWaiting(c *gin.Context) {
	waiting, err := h.Chat.Matcher.IsWaiting(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, waitingResponse{Waiting: waiting})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}

	msg, err := h.Chat.Messages.Send(c.Request.Context(), auth.CallerID(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, msg)
}

func (h *Handler) GetMessages(c *gin.Context) {
	history, err := h.Chat.Messages.List(c.Request.Context(), auth.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, history)
}

func (h *Handler) SendSignal(c *gin.Context) {
	var req sendSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}

	sig, err := h.Chat.Signals.Send(c.Request.Context(), auth.CallerID(c), c.Param("id"), req.ToUserID, req.Type, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, sig)
}

func (h *Handler) GetSignals(c *gin.Context) {
	signals, err := h.Chat.Signals.Poll(c.Request.Context(), auth.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, signals)
}

func (h *Handler) DebugState(c *gin.Context) {
	state, err := h.Chat.DebugState(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) GetICEServers(c *gin.Context) {
	response.Success(c, h.ICEServers)
}
