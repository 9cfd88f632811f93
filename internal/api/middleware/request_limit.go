// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxRequestSize caps request bodies. Every endpoint here takes
// either no body or a tiny JSON document, so 1MB is generous.
const DefaultMaxRequestSize = 1 * 1024 * 1024

// RequestSizeLimit limits request body size via http.MaxBytesReader,
// which returns 413 and closes the connection when exceeded.
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
