package core

import (
	"context"

	"stashly-backend-go/internal/models"
	"stashly-backend-go/internal/payments"
)

// BillingService covers the billing surface: catalog exposure, customer
// resolution, deferred subscription creation, payment-intent pass-throughs
// and webhook-driven subscription-state reconciliation.
type BillingService interface {
	// Plans enumerates the price catalog grouped by plan id.
	Plans() []PlanPrices

	// FindOrCreateCustomer resolves a billing customer by email, creating one
	// tagged with the internal user id when none exists.
	FindOrCreateCustomer(ctx context.Context, email, displayName, userID string) (string, error)

	// CreateSubscription resolves the plan's price, resolves the customer and
	// creates a deferred-payment subscription plus a short-lived client
	// credential. Not atomic against the provider: a failure after the
	// subscription is created leaves it in "incomplete" state to expire on
	// the provider's own policy.
	CreateSubscription(ctx context.Context, userID, planID, billingCycle, email, displayName string) (*SubscriptionCheckout, error)

	// GetSubscription returns the user's persisted record, or nil when the
	// user has no record yet.
	GetSubscription(ctx context.Context, userID string) (*models.SubscriptionRecord, error)

	// HandleWebhookEvent reconciles one signature-verified provider event
	// into the per-user subscription record. Unrecognized event kinds and
	// events with no resolvable user are acknowledged as no-ops, never errors.
	HandleWebhookEvent(ctx context.Context, eventType string, data []byte) error

	// Pass-through wrappers preserved for backward compatibility.
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payments.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*payments.PaymentIntent, error)
}

// SubscriptionCheckout is returned by CreateSubscription with everything the
// client needs to complete the first payment.
type SubscriptionCheckout struct {
	SubscriptionID     string `json:"subscriptionId"`
	CustomerID         string `json:"customerId"`
	ClientSecret       string `json:"clientSecret"`
	EphemeralKeySecret string `json:"ephemeralKey"`
}

// ClassificationService analyzes caller-supplied content and suggests how to
// file it. It never fails toward the caller: any model problem degrades to a
// deterministic fallback result.
type ClassificationService interface {
	Analyze(ctx context.Context, input AnalyzeInput) ClassificationResult
}
