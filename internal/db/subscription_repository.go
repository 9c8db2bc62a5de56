package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stashly-backend-go/internal/models"
)

const subscriptionsCollection = "subscriptions"

// firestoreSubscriptionRepository implements SubscriptionRepository using
// Firestore. Records live at subscriptions/{userID}, with the internal user
// id (Firebase Auth UID) as the document id.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a Firestore-backed repository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	if client == nil {
		panic("Firestore client is not initialized for SubscriptionRepository")
	}
	return &firestoreSubscriptionRepository{client: client}
}

func (r *firestoreSubscriptionRepository) Get(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for Get operation")
	}
	docSnap, err := r.client.Collection(subscriptionsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("subscription record for user '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription record for user '%s': %w", userID, err)
	}

	var record models.SubscriptionRecord
	if err := docSnap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode subscription record for user '%s': %w", userID, err)
	}
	return &record, nil
}

// Merge uses Set with MergeAll so that fields absent from the map are never
// nulled out; webhook events that carry only partial information must not
// erase what earlier events wrote. updatedAt is stamped server-side.
func (r *firestoreSubscriptionRepository) Merge(ctx context.Context, userID string, fields map[string]interface{}) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Merge operation")
	}

	write := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		write[k] = v
	}
	write["updatedAt"] = firestore.ServerTimestamp

	_, err := r.client.Collection(subscriptionsCollection).Doc(userID).Set(ctx, write, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to merge subscription record for user '%s': %w", userID, err)
	}
	return nil
}
