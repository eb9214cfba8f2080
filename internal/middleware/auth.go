// Package middleware provides gin middleware for authentication, request
// logging, and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hmallik/taskally/internal/auth"
)

const (
	// userIDKey is the gin context key for the authenticated user ID.
	userIDKey = "user_id"
	// emailKey is the gin context key for the authenticated user's email.
	emailKey = "email"
)

// GetUserID extracts the authenticated user ID from the request context.
// Returns empty string if not found.
func GetUserID(c *gin.Context) string {
	userID, _ := c.Value(userIDKey).(string)
	return userID
}

// GetEmail extracts the authenticated user's email from the request
// context. Returns empty string if not found.
func GetEmail(c *gin.Context) string {
	email, _ := c.Value(emailKey).(string)
	return email
}

// bearerToken pulls the token out of an Authorization header. Returns
// empty string when the header is absent or malformed.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// RequireAuth returns a middleware that validates JWT tokens and rejects
// unauthenticated requests. On success the user ID and email are added to
// the request context.
func RequireAuth(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
			return
		}

		claims, err := jwtManager.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(emailKey, claims.Email)
		c.Next()
	}
}

// OptionalAuth returns a middleware that validates JWT tokens if present,
// but allows requests without authentication. Useful for endpoints that
// have different behavior for authenticated vs unauthenticated users.
func OptionalAuth(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			// Ignore errors; auth is optional here.
			if claims, err := jwtManager.Validate(token); err == nil {
				c.Set(userIDKey, claims.UserID)
				c.Set(emailKey, claims.Email)
			}
		}
		c.Next()
	}
}
