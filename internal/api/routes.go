package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stashly-backend-go/internal/middleware"
)

// RouterDeps bundles everything SetupRoutes needs. AuthMW is nil when
// Firebase is not configured; routes that can work anonymously then skip
// token verification, and identity-only routes answer 401 from the handler.
type RouterDeps struct {
	Billing  *BillingHandler
	Webhook  *WebhookHandler
	AI       *AIHandler
	Auth     *AuthHandler
	AuthMW   *middleware.AuthMiddleware
	SubsGate gin.HandlerFunc
}

// SetupRoutes configures the application routes on the given engine.
func SetupRoutes(router *gin.Engine, deps RouterDeps) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "stashly-backend", "status": "ok"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/plans", deps.Billing.GetPlans)

	// Webhook delivery is authenticated by its signature, never by a token.
	router.POST("/stripe/webhook", deps.Webhook.HandleStripeWebhook)
	router.POST("/webhook", deps.Webhook.HandleStripeWebhook) // legacy path

	analyze := chainWithAuth(deps, deps.AI.AnalyzeContent, deps.SubsGate)
	router.POST("/ai/analyze", analyze...)

	createSub := chainWithAuth(deps, deps.Billing.CreateSubscription, nil)
	router.POST("/create-subscription", createSub...)

	if deps.AuthMW != nil {
		verified := deps.AuthMW.VerifyToken()
		router.GET("/subscription-status", verified, deps.Billing.GetSubscriptionStatus)
		router.POST("/auth/session-token", verified, deps.Auth.CreateSessionToken)
	} else {
		router.GET("/subscription-status", deps.Billing.GetSubscriptionStatus)
		router.POST("/auth/session-token", deps.Auth.CreateSessionToken)
	}

	// Pass-through payment endpoints kept for clients of earlier API revisions.
	router.POST("/create-customer", deps.Billing.CreateCustomer)
	router.POST("/create-payment-intent", deps.Billing.CreatePaymentIntent)
	router.GET("/payment-intent/:id", deps.Billing.GetPaymentIntent)
}

// chainWithAuth prefixes the handler with token verification and an optional
// entitlement gate when an auth middleware exists; without one the route runs
// anonymously and the gate is meaningless.
func chainWithAuth(deps RouterDeps, handler gin.HandlerFunc, gate gin.HandlerFunc) []gin.HandlerFunc {
	if deps.AuthMW == nil {
		return []gin.HandlerFunc{handler}
	}
	chain := []gin.HandlerFunc{deps.AuthMW.VerifyToken()}
	if gate != nil {
		chain = append(chain, gate)
	}
	return append(chain, handler)
}
