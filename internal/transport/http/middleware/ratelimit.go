package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carequery/internal/ratelimit"
)

// RateLimit rejects requests over the per-IP budget with 429. The limiter
// degrades open on backend errors, so this middleware can never take the
// endpoint down.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, status := limiter.Allow(c.Request.Context(), c.ClientIP(), c.FullPath())
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"limit_info": status,
			})
			return
		}
		c.Next()
	}
}
