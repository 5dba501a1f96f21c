package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader is the HTTP header carrying the correlation id.
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey is the gin context key for the correlation id.
	RequestIDContextKey = "request_id"
)

// RequestID propagates the caller's X-Request-ID, generating one when absent.
// The id doubles as the correlation id stamped on every event emitted while
// handling the request.
func RequestID(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		} else if _, err := uuid.Parse(requestID); err != nil {
			logger.Warn("Invalid request id, generating a new one",
				zap.String("request_id", requestID),
				zap.String("path", c.Request.URL.Path))
			requestID = uuid.New().String()
		}

		c.Set(RequestIDContextKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID returns the correlation id for the current request.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDContextKey)
}
