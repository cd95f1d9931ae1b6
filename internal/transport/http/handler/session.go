package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carequery/internal/app"
	"carequery/internal/repository"
	"carequery/internal/transport/http/response"
)

type SessionHandler struct {
	exchange *app.ExchangeService
	records  *repository.SessionRecordRepository
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type SessionResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
}

func NewSessionHandler(exchange *app.ExchangeService, records *repository.SessionRecordRepository) *SessionHandler {
	return &SessionHandler{exchange: exchange, records: records}
}

// Reset clears the session history, if any, and always hands back a fresh
// identifier. Reset is server-authoritative and idempotent: unknown or
// absent ids succeed the same way.
func (h *SessionHandler) Reset(c *gin.Context) {
	req := h.bindSessionID(c)

	if req.SessionID != "" {
		h.endRecord(c.Request.Context(), req.SessionID)
	}
	newID := h.exchange.ResetSession(req.SessionID)

	c.JSON(http.StatusOK, SessionResponse{
		Message:   "Session reset successfully. New conversation started.",
		SessionID: newID,
		Success:   true,
	})
}

// End removes the session. Unknown ids report success=false in the body
// but still answer 200.
func (h *SessionHandler) End(c *gin.Context) {
	req := h.bindSessionID(c)
	if req.SessionID == "" {
		response.Error(c, http.StatusBadRequest, "session_id is required")
		return
	}

	if !h.exchange.EndSession(req.SessionID) {
		c.JSON(http.StatusOK, SessionResponse{
			Message:   "Session " + req.SessionID + " not found",
			SessionID: req.SessionID,
			Success:   false,
		})
		return
	}

	h.endRecord(c.Request.Context(), req.SessionID)
	c.JSON(http.StatusOK, SessionResponse{
		Message:   "Session " + req.SessionID + " ended successfully",
		SessionID: req.SessionID,
		Success:   true,
	})
}

// List reports the ids of all live sessions.
func (h *SessionHandler) List(c *gin.Context) {
	ids := h.exchange.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"active_sessions": ids,
		"total_sessions":  len(ids),
		"timestamp":       time.Now(),
	})
}

// Get returns one session's turns.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")
	turns, ok := h.exchange.SessionTurns(sessionID)
	if !ok {
		response.Error(c, http.StatusNotFound, "session not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":    sessionID,
		"turns":         turns,
		"message_count": len(turns),
		"timestamp":     time.Now(),
	})
}

// bindSessionID accepts the id from a JSON body or, failing that, the
// query string, so both the web client and plain curl calls work.
func (h *SessionHandler) bindSessionID(c *gin.Context) SessionRequest {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		req.SessionID = c.Query("session_id")
	}
	return req
}

func (h *SessionHandler) endRecord(ctx context.Context, sessionID string) {
	if h.records == nil {
		return
	}
	if err := h.records.End(ctx, sessionID, time.Now()); err != nil {
		log.Printf("end session record failed: %v", err)
	}
}
