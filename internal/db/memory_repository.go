package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stashly-backend-go/internal/models"
)

// memorySubscriptionRepository is an in-memory SubscriptionRepository with
// the same merge semantics as the Firestore implementation. It backs the
// server when no database is configured, and tests.
type memorySubscriptionRepository struct {
	mu      sync.RWMutex
	records map[string]map[string]interface{}
	now     func() time.Time
}

// NewMemorySubscriptionRepository creates an empty in-memory repository.
func NewMemorySubscriptionRepository() SubscriptionRepository {
	return &memorySubscriptionRepository{
		records: make(map[string]map[string]interface{}),
		now:     time.Now,
	}
}

func (r *memorySubscriptionRepository) Get(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty for Get operation")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	fields, ok := r.records[userID]
	if !ok {
		return nil, fmt.Errorf("subscription record for user '%s' not found: %w", userID, ErrNotFound)
	}
	return recordFromFields(fields), nil
}

func (r *memorySubscriptionRepository) Merge(ctx context.Context, userID string, fields map[string]interface{}) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty for Merge operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[userID]
	if !ok {
		current = make(map[string]interface{})
		r.records[userID] = current
	}
	for k, v := range fields {
		current[k] = v
	}
	current["updatedAt"] = r.now().UTC()
	return nil
}

func recordFromFields(fields map[string]interface{}) *models.SubscriptionRecord {
	record := &models.SubscriptionRecord{}
	if s, ok := fields[FieldStatus].(string); ok {
		record.Status = s
	}
	if s, ok := fields[FieldPlanID].(string); ok {
		record.PlanID = &s
	}
	if s, ok := fields[FieldBillingCycle].(string); ok {
		record.BillingCycle = &s
	}
	if s, ok := fields[FieldStripeCustomerID].(string); ok {
		record.StripeCustomerID = s
	}
	if s, ok := fields[FieldStripeSubscriptionID].(string); ok {
		record.StripeSubscriptionID = s
	}
	if t, ok := fields[FieldCurrentPeriodEnd].(time.Time); ok {
		record.CurrentPeriodEnd = &t
	}
	if b, ok := fields[FieldCancelAtPeriodEnd].(bool); ok {
		record.CancelAtPeriodEnd = b
	}
	if t, ok := fields["updatedAt"].(time.Time); ok {
		record.UpdatedAt = t
	}
	return record
}
