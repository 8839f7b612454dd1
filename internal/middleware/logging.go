package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"

// StructuredLoggingMiddleware provides structured logging with request latency and query parameters
func StructuredLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		logger.Debug("request started",
			"request_id", requestID,
			"method", method,
			"path", path,
			"query_params", c.Request.URL.Query().Encode(),
			"remote_addr", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case statusCode >= 500:
			level = slog.LevelError
		case statusCode >= 400:
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request completed",
			"request_id", requestID,
			"method", method,
			"path", path,
			"route", c.FullPath(),
			"status_code", statusCode,
			"latency_ms", latency.Milliseconds(),
			"bytes_written", c.Writer.Size(),
		)

		for _, err := range c.Errors {
			logger.Error("request error",
				"request_id", requestID,
				"method", method,
				"path", path,
				"error", err.Error(),
			)
		}
	}
}
