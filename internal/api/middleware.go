package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyAuthMiddleware returns middleware that checks for a valid API key.
// The health endpoint is exempt. No-op if apiKey is empty.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.Request.URL.Path == "/api/v1/health" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] == apiKey {
				c.Next()
				return
			}
		}
		if c.GetHeader("X-API-Key") == apiKey {
			c.Next()
			return
		}

		UnauthorizedError(c, "invalid or missing API key")
		c.Abort()
	}
}

// MaxBodySizeMiddleware returns middleware that rejects bodies over maxBytes.
// Per-user request-rate limiting is the engine's job (internal/ratelimit,
// gated inside every Engine call); this layer only guards the transport
// against oversized payloads.
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			PayloadTooLargeError(c, fmt.Sprintf("request body too large, maximum %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

const (
	// DefaultBodyLimit bounds ordinary memory/session JSON bodies.
	DefaultBodyLimit = 1 * 1024 * 1024
	// BatchBodyLimit bounds save_batch bodies, which can carry many memories.
	BatchBodyLimit = 10 * 1024 * 1024
)

func clampLimit(limit, defaultVal, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit > max {
		return max
	}
	return limit
}
