package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	retryAfterSeconds = "60"
	rejectionBody     = "Too many requests. Please try again later."
)

// Middleware enforces l on every request. Rejected requests get 429 with a
// plain-text body and never reach the handler chain.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := l.Allow(c.Request.Context(), c.Request)
		if d.FailOpen {
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining(), 10))
		if !d.Allowed {
			c.Header("Retry-After", retryAfterSeconds)
			c.Data(http.StatusTooManyRequests, "text/plain; charset=utf-8", []byte(rejectionBody))
			c.Abort()
			return
		}
		c.Next()
	}
}
