package middleware

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by VerifyToken for downstream handlers.
const (
	ContextUserIDKey      = "userID"
	ContextUserEmailKey   = "userEmail"
	ContextDisplayNameKey = "userDisplayName"
)

// errorBody mirrors the API error shape locally to avoid an import cycle
// with internal/api.
type errorBody struct {
	Error string `json:"error"`
}

// AuthMiddleware provides Gin middleware for Firebase ID-token authentication.
type AuthMiddleware struct {
	firebaseAuthClient *auth.Client
	logger             *zap.Logger
}

// NewAuthMiddleware creates an AuthMiddleware. A nil auth client is a setup
// error: routes requiring authentication cannot function without one.
func NewAuthMiddleware(fbAuthClient *auth.Client, logger *zap.Logger) *AuthMiddleware {
	if fbAuthClient == nil {
		panic("Firebase Auth client is not initialized for AuthMiddleware")
	}
	return &AuthMiddleware{firebaseAuthClient: fbAuthClient, logger: logger}
}

// VerifyToken validates the Bearer token from the Authorization header and
// puts the caller's identity into the Gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		token, err := m.firebaseAuthClient.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			m.logger.Warn("ID token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "Invalid or expired authentication token"})
			return
		}

		c.Set(ContextUserIDKey, token.UID)
		if email, ok := token.Claims["email"].(string); ok {
			c.Set(ContextUserEmailKey, email)
		}
		if name, ok := token.Claims["name"].(string); ok {
			c.Set(ContextDisplayNameKey, name)
		}

		c.Next()
	}
}
