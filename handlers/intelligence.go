package handlers

import (
	"errors"
	"net/http"

	ai "tablebook/services/intelligence"
	"tablebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionHeader = "session-id"

type ChatHandler struct {
	Service ai.ChatService
	Logger  *zap.Logger
}

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.GetHeader(sessionHeader)
	}

	reply, id, err := h.Service.Converse(c.Request.Context(), sessionID, req.Message)
	switch {
	case errors.Is(err, ai.ErrEmptyMessage):
		utils.JSONError(c, http.StatusBadRequest, "invalid_input", err.Error(), "message")
		return
	case errors.Is(err, ai.ErrLockTimeout):
		utils.JSONError(c, http.StatusConflict, "session_busy", "Another message for this session is still being answered.", "")
		return
	case err != nil:
		respondError(c, h.Logger, err)
		return
	}

	c.Header(sessionHeader, id)
	c.JSON(http.StatusOK, chatResponse{Response: reply, SessionID: id})
}

func (h *ChatHandler) EndChat(c *gin.Context) {
	if err := h.Service.EndSession(c.Request.Context(), c.Param("sessionID")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
