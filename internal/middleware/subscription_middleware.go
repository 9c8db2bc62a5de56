package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stashly-backend-go/internal/models"
)

// SubscriptionReader is the slice of the billing service this middleware
// needs; narrowed so tests can use a local fake.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, userID string) (*models.SubscriptionRecord, error)
}

// RequireActiveSubscription gates a route on the caller's persisted
// subscription status. Callers with no identity in context, no record, or an
// empty/active status pass through; an explicit non-active status is
// rejected with 403. A storage failure fails open with a warning — the gate
// is an entitlement check, not a security boundary.
func RequireActiveSubscription(subs SubscriptionReader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserIDKey)
		if userID == "" {
			c.Next()
			return
		}

		record, err := subs.GetSubscription(c.Request.Context(), userID)
		if err != nil {
			logger.Warn("subscription lookup failed; allowing request",
				zap.String("userId", userID),
				zap.Error(err))
			c.Next()
			return
		}
		if record == nil || record.Status == "" || record.Status == models.SubscriptionStatusActive {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "An active subscription is required"})
	}
}
