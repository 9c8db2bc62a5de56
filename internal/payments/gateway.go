// Package payments defines a lean gateway abstraction over the external
// payment provider. Result types carry only the fields this system actually
// reads, decoupling callers from the full vendor schema, and the interface
// lets tests substitute a fake for the Stripe-backed implementation.
package payments

import (
	"context"
	"errors"
	"time"
)

// ErrProvider wraps every failure of a downstream payment-provider call.
// Callers surface it to their clients as an external-service error; there is
// no local fallback for billing operations.
var ErrProvider = errors.New("payment provider request failed")

// MetadataUserIDKey is the correlation tag written onto Stripe customers and
// subscriptions so webhook events can be mapped back to an internal user.
const MetadataUserIDKey = "userId"

// Customer is the subset of a billing customer this system reads.
type Customer struct {
	ID       string
	Email    string
	Name     string
	Metadata map[string]string
}

// Subscription is the subset of a billing subscription this system reads.
type Subscription struct {
	ID         string
	CustomerID string
	Status     string
	// PriceID is the price of the first line item; empty when the
	// subscription carries no items.
	PriceID           string
	CurrentPeriodEnd  time.Time // zero when the provider did not report one
	CancelAtPeriodEnd bool
	Metadata          map[string]string
}

// PaymentIntent is the subset of a payment intent this system reads.
type PaymentIntent struct {
	ID           string
	Status       string
	ClientSecret string
	Amount       int64
	Currency     string
}

// CreateSubscriptionParams describes a deferred-payment subscription to create.
type CreateSubscriptionParams struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

// CreatedSubscription is the result of CreateSubscription: the new
// subscription (in "incomplete" state) plus the client secret the frontend
// needs to confirm the first payment.
type CreatedSubscription struct {
	ID                  string
	CustomerID          string
	Status              string
	PaymentClientSecret string
}

// Gateway is the payment-provider surface the billing service depends on.
type Gateway interface {
	// FindCustomerByEmail returns the first customer with an exact email
	// match, or nil when none exists.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*Customer, error)
	// SetCustomerMetadata merges metadata onto an existing customer. Callers
	// treat failures as non-fatal (log and continue).
	SetCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)

	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*CreatedSubscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// CreateEphemeralKey mints a short-lived client credential scoped to the
	// customer, for client-side payment UI.
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)

	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}
