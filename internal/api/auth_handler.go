package api

import (
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stashly-backend-go/internal/middleware"
)

// AuthHandler mints secondary session credentials for already-authenticated
// callers (browser extensions and other companion clients).
type AuthHandler struct {
	authClient *auth.Client // nil when Firebase is not configured
	logger     *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authClient *auth.Client, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authClient: authClient, logger: logger}
}

// CreateSessionToken handles POST /auth/session-token. The caller proves
// identity with a regular ID token via the auth middleware and receives a
// custom token it can exchange for fresh credentials elsewhere.
func (h *AuthHandler) CreateSessionToken(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}
	if h.authClient == nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Authentication backend is not configured"})
		return
	}

	token, err := h.authClient.CustomToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to mint custom token", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create session token"})
		return
	}

	c.JSON(http.StatusOK, SessionTokenResponse{Token: token})
}
