package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carequery/internal/ratelimit"
	"carequery/internal/transport/http/response"
)

type RateLimitHandler struct {
	limiter *ratelimit.Limiter
}

func NewRateLimitHandler(limiter *ratelimit.Limiter) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter}
}

// Status serves GET /rate-limit/:ip?endpoint=E without counting a request.
func (h *RateLimitHandler) Status(c *gin.Context) {
	ipAddress := c.Param("ip")
	endpoint := c.DefaultQuery("endpoint", "/chat")

	status, err := h.limiter.Check(c.Request.Context(), ipAddress, endpoint)
	if err != nil {
		log.Printf("rate limit check failed: %v", err)
		response.Error(c, http.StatusInternalServerError, "rate limit status unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ip_address": ipAddress,
		"endpoint":   endpoint,
		"is_allowed": !status.Blocked,
		"limit_info": status,
		"timestamp":  time.Now(),
	})
}
