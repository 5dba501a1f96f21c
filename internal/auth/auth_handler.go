package auth

import (
	"net/http"
	"time"

	"stocksaga/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	jwtManager *JWTManager
	logger     *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(jwtManager *JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{jwtManager: jwtManager, logger: logger}
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid login request", err.Error()))
		return
	}

	role, ok := h.validateCredentials(req.Username, req.Password)
	if !ok {
		h.logger.Warn("Invalid credentials", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, errors.NewStandardError("Unauthorized", "invalid credentials", "username or password incorrect"))
		return
	}

	token, err := h.jwtManager.GenerateToken(req.Username, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("failed to generate token", err))
		return
	}

	expiresAt := time.Now().Add(TokenTTL)
	h.logger.Info("User logged in",
		zap.String("username", req.Username),
		zap.String("role", role))

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		Type:      "Bearer",
		ExpiresIn: int(TokenTTL.Seconds()),
		ExpiresAt: expiresAt,
	})
}

// validateCredentials checks the prototype user table. A real deployment
// would back this with a user store.
func (h *AuthHandler) validateCredentials(username, password string) (string, bool) {
	users := map[string]struct {
		password string
		role     string
	}{
		"admin":    {"admin123", "admin"},
		"operator": {"operator123", "operator"},
		"viewer":   {"viewer123", "viewer"},
	}

	user, exists := users[username]
	if !exists || user.password != password {
		return "", false
	}
	return user.role, true
}
