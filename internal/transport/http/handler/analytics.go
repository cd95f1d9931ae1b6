package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carequery/internal/analytics"
	"carequery/internal/transport/http/response"
)

type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator}
}

// Overview serves /analytics?days=N. Out-of-range or unparseable values
// fall back to the 7-day default rather than erroring.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}

	overview, err := h.aggregator.Overview(c.Request.Context(), days)
	if err != nil {
		log.Printf("analytics overview failed: %v", err)
		response.Error(c, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Storage serves /storage/stats.
func (h *AnalyticsHandler) Storage(c *gin.Context) {
	stats, err := h.aggregator.Storage(c.Request.Context())
	if err != nil {
		log.Printf("storage stats failed: %v", err)
		response.Error(c, http.StatusInternalServerError, "storage stats unavailable")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Cleanup serves POST /storage/cleanup?days_to_keep=N.
func (h *AnalyticsHandler) Cleanup(c *gin.Context) {
	daysToKeep := 30
	if raw := c.Query("days_to_keep"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			daysToKeep = parsed
		}
	}

	stats, err := h.aggregator.Cleanup(c.Request.Context(), daysToKeep)
	if err != nil {
		log.Printf("storage cleanup failed: %v", err)
		response.Error(c, http.StatusInternalServerError, "storage cleanup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Storage cleanup completed",
		"cleanup_stats": stats,
		"timestamp":     time.Now(),
	})
}
