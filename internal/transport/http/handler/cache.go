package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carequery/internal/cache"
	"carequery/internal/transport/http/response"
)

type CacheHandler struct {
	cache *cache.ResponseCache
}

func NewCacheHandler(responseCache *cache.ResponseCache) *CacheHandler {
	return &CacheHandler{cache: responseCache}
}

// Get serves GET /cache/:key.
func (h *CacheHandler) Get(c *gin.Context) {
	key := c.Param("key")

	payload, hit, err := h.cache.Get(c.Request.Context(), key)
	if err != nil {
		log.Printf("cache get failed: %v", err)
		response.Error(c, http.StatusInternalServerError, "cache unavailable")
		return
	}
	if !hit {
		response.Error(c, http.StatusNotFound, "cache entry not found or expired")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cached":    true,
		"response":  payload,
		"timestamp": time.Now(),
	})
}

// Set serves POST /cache/:key?ttl_minutes=N with the payload as the body.
func (h *CacheHandler) Set(c *gin.Context) {
	key := c.Param("key")

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid cache payload")
		return
	}

	ttl := h.cache.DefaultTTL()
	if raw := c.Query("ttl_minutes"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			ttl = time.Duration(parsed) * time.Minute
		}
	}

	if err := h.cache.Set(c.Request.Context(), key, payload, ttl); err != nil {
		log.Printf("cache set failed: %v", err)
		response.Error(c, http.StatusInternalServerError, "cache unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cached":      true,
		"cache_key":   key,
		"ttl_minutes": int(ttl.Minutes()),
		"timestamp":   time.Now(),
	})
}
