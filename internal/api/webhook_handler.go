package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"stashly-backend-go/internal/core"
)

const webhookBodyLimit = 1 << 20 // Stripe caps event payloads well below 1MiB

// WebhookHandler ingests signed Stripe events. Signature verification is the
// authentication mechanism for this endpoint; there is no bearer token.
type WebhookHandler struct {
	billingService core.BillingService
	webhookSecret  string
	logger         *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(bs core.BillingService, webhookSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{billingService: bs, webhookSecret: webhookSecret, logger: logger}
}

// HandleStripeWebhook handles POST /stripe/webhook. It acknowledges with
// {"received": true} whenever the signature verified and processing ran,
// including no-op events — Stripe redelivers anything that gets a non-2xx,
// so only signature failures (400) and unexpected processing failures (500)
// deviate. The 500 body is plain text: the sender keys retries off the
// status code, not the body shape.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read webhook payload"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, h.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook signature verification failed"})
		return
	}

	if err := h.billingService.HandleWebhookEvent(c.Request.Context(), string(event.Type), event.Data.Raw); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("eventId", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		c.String(http.StatusInternalServerError, "webhook processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
