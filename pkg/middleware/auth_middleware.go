package middleware

import (
	"net/http"
	"strings"

	"stocksaga/internal/auth"
	"stocksaga/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Auth validates the Bearer token and stores the caller's identity in the
// context for handlers to use as the acting user.
func Auth(jwtManager *auth.JWTManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, errors.NewStandardError("Unauthorized", "missing authorization header", "Header: Authorization"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, errors.NewStandardError("Unauthorized", "invalid authorization header format", "Expected: Bearer <token>"))
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			if err == auth.ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, errors.NewStandardError("Unauthorized", "token expired", "Token has expired, please login again"))
			} else {
				logger.Warn("Invalid token",
					zap.String("path", c.Request.URL.Path),
					zap.Error(err))
				c.JSON(http.StatusUnauthorized, errors.NewStandardError("Unauthorized", "invalid token", err.Error()))
			}
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// ActingUser returns the authenticated username, or "system" for unauthenticated
// paths such as internal consumers.
func ActingUser(c *gin.Context) string {
	if username := c.GetString("username"); username != "" {
		return username
	}
	return "system"
}
