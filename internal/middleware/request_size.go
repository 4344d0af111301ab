package middleware

import (
	"fmt"
	"net/http"

	"fluoride-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

// DefaultMaxRequestSize bounds request bodies. Telemetry payloads are a few
// hundred bytes.
const DefaultMaxRequestSize int64 = 1 << 20

// RequestSizeLimitMiddleware rejects bodies larger than maxSize on methods
// that carry one. Bodies without a Content-Length are cut off while being
// read.
func RequestSizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	tooLarge := fmt.Sprintf("Request body exceeds %d bytes", maxSize)

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
