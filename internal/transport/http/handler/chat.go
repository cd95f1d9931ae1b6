package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carequery/internal/app"
	"carequery/internal/transport/http/response"
)

type ChatHandler struct {
	exchange *app.ExchangeService
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

func NewChatHandler(exchange *app.ExchangeService) *ChatHandler {
	return &ChatHandler{exchange: exchange}
}

// Chat is the core exchange endpoint. Validation failures reject the
// request before it touches the session store or the agent; agent-side
// failures come back as a 200 with success=false so the conversation
// survives them.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	resp, err := h.exchange.Exchange(c.Request.Context(), app.ExchangeInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrMessageTooLong):
			response.Error(c, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, app.ErrAgentUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "agent not available, please check server logs")
		default:
			response.Error(c, http.StatusInternalServerError, "chat exchange failed")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
