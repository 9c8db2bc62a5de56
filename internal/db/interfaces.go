package db

import (
	"context"
	"errors"

	"stashly-backend-go/internal/models"
)

// ErrNotFound is returned when a document does not exist in storage.
var ErrNotFound = errors.New("document not found")

// Field names accepted by SubscriptionRepository.Merge. They match the
// Firestore document fields of models.SubscriptionRecord.
const (
	FieldPlanID               = "planId"
	FieldBillingCycle         = "billingCycle"
	FieldStatus               = "status"
	FieldStripeCustomerID     = "stripeCustomerId"
	FieldStripeSubscriptionID = "stripeSubscriptionId"
	FieldCurrentPeriodEnd     = "currentPeriodEnd"
	FieldCancelAtPeriodEnd    = "cancelAtPeriodEnd"
)

// SubscriptionRepository stores at most one SubscriptionRecord per internal
// user id.
type SubscriptionRepository interface {
	// Get returns the user's record, or ErrNotFound when none exists yet.
	Get(ctx context.Context, userID string) (*models.SubscriptionRecord, error)

	// Merge performs a merge-write of the given fields onto the user's
	// record, creating it when absent. Fields not present in the map are
	// left untouched; a nil value explicitly clears a field. The
	// implementation stamps updatedAt on every write. Concurrent merges for
	// the same user resolve last-write-wins per field.
	Merge(ctx context.Context, userID string, fields map[string]interface{}) error
}
