package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger returns a middleware that logs every request with its
// method, path, status, user ID, and duration.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start).Milliseconds()
		userID := GetUserID(c) // empty if pre-auth

		switch {
		case status >= 500:
			slog.Error("request error",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"user_id", userID,
				"duration_ms", duration,
				"errors", c.Errors.String(),
			)
		case status >= 400:
			slog.Warn("request rejected",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"user_id", userID,
				"duration_ms", duration,
			)
		default:
			slog.Info("request ok",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"user_id", userID,
				"duration_ms", duration,
			)
		}
	}
}

// CORS adds the headers browsers need for cross-origin access, including
// SSE streams.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
