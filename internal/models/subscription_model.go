package models

import "time"

// SubscriptionRecord is the canonical per-user subscription state, keyed by
// the internal user id (one document per user). It is created on the first
// successful webhook reconciliation and only ever transitioned, never deleted.
type SubscriptionRecord struct {
	// PlanID and BillingCycle are derived from the Stripe price id via the
	// price catalog. They are pointers because a price id that is absent from
	// the catalog is written as null rather than dropping the whole update.
	PlanID       *string `json:"planId" firestore:"planId"`
	BillingCycle *string `json:"billingCycle" firestore:"billingCycle"`

	// Status carries the provider status verbatim (e.g. "active", "past_due",
	// "incomplete"), except for deletion events which force "canceled".
	Status string `json:"status" firestore:"status"`

	StripeCustomerID     string `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId"`
	StripeSubscriptionID string `json:"stripeSubscriptionId,omitempty" firestore:"stripeSubscriptionId"`

	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty" firestore:"currentPeriodEnd"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd" firestore:"cancelAtPeriodEnd"`

	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// Subscription status values this backend assigns itself. Anything else in
// SubscriptionRecord.Status is a Stripe-native status passed through verbatim.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Supported billing cycles for catalog entries and checkout requests.
const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)
