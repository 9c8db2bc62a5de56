package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stashly-backend-go/internal/db"
	"stashly-backend-go/internal/models"
	"stashly-backend-go/internal/payments"
)

// fakeGateway is an in-memory payments.Gateway for exercising the billing
// service without talking to Stripe.
type fakeGateway struct {
	customersByEmail map[string]*payments.Customer
	customersByID    map[string]*payments.Customer
	subscriptions    map[string]*payments.Subscription

	createdCustomers     []payments.Customer
	createdSubscriptions []payments.CreateSubscriptionParams
	metadataWrites       map[string]map[string]string

	ephemeralErr error
	customerErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customersByEmail: make(map[string]*payments.Customer),
		customersByID:    make(map[string]*payments.Customer),
		subscriptions:    make(map[string]*payments.Subscription),
		metadataWrites:   make(map[string]map[string]string),
	}
}

func (g *fakeGateway) FindCustomerByEmail(ctx context.Context, email string) (*payments.Customer, error) {
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	return g.customersByEmail[email], nil
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*payments.Customer, error) {
	customer := &payments.Customer{
		ID:       fmt.Sprintf("cus_%d", len(g.createdCustomers)+1),
		Email:    email,
		Name:     name,
		Metadata: metadata,
	}
	g.createdCustomers = append(g.createdCustomers, *customer)
	g.customersByEmail[email] = customer
	g.customersByID[customer.ID] = customer
	return customer, nil
}

func (g *fakeGateway) SetCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	g.metadataWrites[customerID] = metadata
	return nil
}

func (g *fakeGateway) GetCustomer(ctx context.Context, customerID string) (*payments.Customer, error) {
	customer, ok := g.customersByID[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: no such customer %s", payments.ErrProvider, customerID)
	}
	return customer, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, params payments.CreateSubscriptionParams) (*payments.CreatedSubscription, error) {
	g.createdSubscriptions = append(g.createdSubscriptions, params)
	return &payments.CreatedSubscription{
		ID:                  "sub_new",
		CustomerID:          params.CustomerID,
		Status:              "incomplete",
		PaymentClientSecret: "pi_secret_123",
	}, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*payments.Subscription, error) {
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: no such subscription %s", payments.ErrProvider, subscriptionID)
	}
	return sub, nil
}

func (g *fakeGateway) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	if g.ephemeralErr != nil {
		return "", g.ephemeralErr
	}
	return "ek_secret_456", nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payments.PaymentIntent, error) {
	return &payments.PaymentIntent{ID: "pi_1", Status: "requires_payment_method", ClientSecret: "pi_1_secret", Amount: amount, Currency: currency}, nil
}

func (g *fakeGateway) GetPaymentIntent(ctx context.Context, id string) (*payments.PaymentIntent, error) {
	return &payments.PaymentIntent{ID: id, Status: "succeeded", Amount: 1000, Currency: "usd"}, nil
}

func newTestBillingService(t *testing.T, gateway payments.Gateway) (BillingService, db.SubscriptionRepository) {
	t.Helper()
	catalog, err := ParseCatalog(`{"pro_monthly":"price_pro_m","pro_yearly":"price_pro_y"}`)
	require.NoError(t, err)
	repo := db.NewMemorySubscriptionRepository()
	return NewBillingService(catalog, gateway, repo, zap.NewNop()), repo
}

func TestFindOrCreateCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a new customer with the user tag", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		customerID, err := svc.FindOrCreateCustomer(ctx, "ada@example.com", "Ada", "user_1")
		require.NoError(t, err)
		assert.NotEmpty(t, customerID)
		require.Len(t, gateway.createdCustomers, 1)
		assert.Equal(t, "user_1", gateway.createdCustomers[0].Metadata[payments.MetadataUserIDKey])
	})

	t.Run("reuses an existing customer", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.customersByEmail["ada@example.com"] = &payments.Customer{
			ID:       "cus_existing",
			Email:    "ada@example.com",
			Metadata: map[string]string{payments.MetadataUserIDKey: "user_1"},
		}
		svc, _ := newTestBillingService(t, gateway)

		customerID, err := svc.FindOrCreateCustomer(ctx, "ada@example.com", "Ada", "user_1")
		require.NoError(t, err)
		assert.Equal(t, "cus_existing", customerID)
		assert.Empty(t, gateway.createdCustomers)
		assert.Empty(t, gateway.metadataWrites, "already-tagged customer must not be re-tagged")
	})

	t.Run("backfills the user tag on an untagged existing customer", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.customersByEmail["ada@example.com"] = &payments.Customer{
			ID:    "cus_existing",
			Email: "ada@example.com",
		}
		svc, _ := newTestBillingService(t, gateway)

		customerID, err := svc.FindOrCreateCustomer(ctx, "ada@example.com", "Ada", "user_1")
		require.NoError(t, err)
		assert.Equal(t, "cus_existing", customerID)
		assert.Equal(t, map[string]string{payments.MetadataUserIDKey: "user_1"}, gateway.metadataWrites["cus_existing"])
	})
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("returns both client secrets and tags the subscription", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		checkout, err := svc.CreateSubscription(ctx, "user_1", "pro", "monthly", "ada@example.com", "Ada")
		require.NoError(t, err)
		assert.Equal(t, "sub_new", checkout.SubscriptionID)
		assert.Equal(t, "pi_secret_123", checkout.ClientSecret)
		assert.Equal(t, "ek_secret_456", checkout.EphemeralKeySecret)
		assert.NotEmpty(t, checkout.CustomerID)

		require.Len(t, gateway.createdSubscriptions, 1)
		params := gateway.createdSubscriptions[0]
		assert.Equal(t, "price_pro_m", params.PriceID)
		assert.Equal(t, "user_1", params.Metadata[payments.MetadataUserIDKey])
		assert.Equal(t, "pro", params.Metadata["planId"])
		assert.Equal(t, "monthly", params.Metadata["billingCycle"])
	})

	t.Run("unknown plan selection fails before any provider call", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		_, err := svc.CreateSubscription(ctx, "user_1", "enterprise", "monthly", "ada@example.com", "Ada")
		require.ErrorIs(t, err, ErrPlanNotFound)
		assert.Empty(t, gateway.createdCustomers)
		assert.Empty(t, gateway.createdSubscriptions)
	})

	t.Run("ephemeral key failure surfaces after the subscription exists", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.ephemeralErr = fmt.Errorf("%w: key minting refused", payments.ErrProvider)
		svc, _ := newTestBillingService(t, gateway)

		_, err := svc.CreateSubscription(ctx, "user_1", "pro", "yearly", "ada@example.com", "Ada")
		require.ErrorIs(t, err, payments.ErrProvider)
		assert.Len(t, gateway.createdSubscriptions, 1)
	})
}

func subscriptionEventJSON(metadata, status string, priceID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "sub_1",
		"customer": "cus_1",
		"status": %q,
		"cancel_at_period_end": true,
		"metadata": %s,
		"items": {"data": [{"current_period_end": 1767225600, "price": {"id": %q}}]}
	}`, status, metadata, priceID))
}

func TestHandleWebhookEvent_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("updated event writes the full record", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		payload := subscriptionEventJSON(`{"userId": "user_1"}`, "active", "price_pro_m")
		require.NoError(t, svc.HandleWebhookEvent(ctx, "customer.subscription.updated", payload))

		record, err := svc.GetSubscription(ctx, "user_1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.SubscriptionStatusActive, record.Status)
		require.NotNil(t, record.PlanID)
		assert.Equal(t, "pro", *record.PlanID)
		require.NotNil(t, record.BillingCycle)
		assert.Equal(t, models.BillingCycleMonthly, *record.BillingCycle)
		assert.Equal(t, "cus_1", record.StripeCustomerID)
		assert.Equal(t, "sub_1", record.StripeSubscriptionID)
		assert.True(t, record.CancelAtPeriodEnd)
		require.NotNil(t, record.CurrentPeriodEnd)
		assert.Equal(t, time.Unix(1767225600, 0).UTC(), *record.CurrentPeriodEnd)
	})

	t.Run("deleted event forces canceled regardless of reported status", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		payload := subscriptionEventJSON(`{"userId": "user_1"}`, "active", "price_pro_m")
		require.NoError(t, svc.HandleWebhookEvent(ctx, "customer.subscription.deleted", payload))

		record, err := svc.GetSubscription(ctx, "user_1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.SubscriptionStatusCanceled, record.Status)
		assert.True(t, record.CancelAtPeriodEnd)
	})

	t.Run("unknown price id writes null plan fields", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		payload := subscriptionEventJSON(`{"userId": "user_1"}`, "active", "price_retired")
		require.NoError(t, svc.HandleWebhookEvent(ctx, "customer.subscription.updated", payload))

		record, err := svc.GetSubscription(ctx, "user_1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.SubscriptionStatusActive, record.Status)
		assert.Nil(t, record.PlanID)
		assert.Nil(t, record.BillingCycle)
	})

	t.Run("unresolvable identity is dropped without error", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		payload := subscriptionEventJSON(`{}`, "active", "price_pro_m")
		require.NoError(t, svc.HandleWebhookEvent(ctx, "customer.subscription.updated", payload))

		record, err := svc.GetSubscription(ctx, "user_1")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("falls back to the customer tag when the subscription is untagged", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.customersByID["cus_1"] = &payments.Customer{
			ID:       "cus_1",
			Metadata: map[string]string{payments.MetadataUserIDKey: "user_from_customer"},
		}
		svc, _ := newTestBillingService(t, gateway)

		payload := subscriptionEventJSON(`{}`, "active", "price_pro_m")
		require.NoError(t, svc.HandleWebhookEvent(ctx, "customer.subscription.updated", payload))

		record, err := svc.GetSubscription(ctx, "user_from_customer")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.SubscriptionStatusActive, record.Status)
	})

	t.Run("malformed payload is an error", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		err := svc.HandleWebhookEvent(ctx, "customer.subscription.updated", []byte(`{"id":`))
		assert.Error(t, err)
	})
}

func TestHandleWebhookEvent_CheckoutSession(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves the subscription and uses the client reference", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.subscriptions["sub_1"] = &payments.Subscription{
			ID:               "sub_1",
			CustomerID:       "cus_1",
			Status:           "active",
			PriceID:          "price_pro_y",
			CurrentPeriodEnd: time.Unix(1767225600, 0).UTC(),
		}
		svc, _ := newTestBillingService(t, gateway)

		payload := []byte(`{
			"id": "cs_1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"client_reference_id": "user_ref"
		}`)
		require.NoError(t, svc.HandleWebhookEvent(ctx, "checkout.session.completed", payload))

		record, err := svc.GetSubscription(ctx, "user_ref")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.SubscriptionStatusActive, record.Status)
		require.NotNil(t, record.PlanID)
		assert.Equal(t, "pro", *record.PlanID)
		require.NotNil(t, record.BillingCycle)
		assert.Equal(t, models.BillingCycleYearly, *record.BillingCycle)
	})

	t.Run("session metadata outranks the client reference", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.subscriptions["sub_1"] = &payments.Subscription{
			ID: "sub_1", CustomerID: "cus_1", Status: "active", PriceID: "price_pro_m",
		}
		svc, _ := newTestBillingService(t, gateway)

		payload := []byte(`{
			"id": "cs_1",
			"subscription": "sub_1",
			"client_reference_id": "user_ref",
			"metadata": {"userId": "user_meta"}
		}`)
		require.NoError(t, svc.HandleWebhookEvent(ctx, "checkout.session.completed", payload))

		record, err := svc.GetSubscription(ctx, "user_meta")
		require.NoError(t, err)
		require.NotNil(t, record)

		other, err := svc.GetSubscription(ctx, "user_ref")
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("session without a subscription is a no-op", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		payload := []byte(`{"id": "cs_1", "customer": "cus_1"}`)
		assert.NoError(t, svc.HandleWebhookEvent(ctx, "checkout.session.completed", payload))
	})
}

func TestHandleWebhookEvent_Invoices(t *testing.T) {
	ctx := context.Background()

	t.Run("payment failure forces past_due", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.subscriptions["sub_1"] = &payments.Subscription{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Status:     "active",
			PriceID:    "price_pro_m",
			Metadata:   map[string]string{payments.MetadataUserIDKey: "user_1"},
		}
		svc, _ := newTestBillingService(t, gateway)

		payload := []byte(`{"id": "in_1", "customer": "cus_1", "subscription": "sub_1"}`)
		require.NoError(t, svc.HandleWebhookEvent(ctx, "invoice.payment_failed", payload))

		record, err := svc.GetSubscription(ctx, "user_1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.SubscriptionStatusPastDue, record.Status)
	})

	t.Run("payment success keeps the provider-reported status", func(t *testing.T) {
		gateway := newFakeGateway()
		gateway.subscriptions["sub_1"] = &payments.Subscription{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Status:     "active",
			PriceID:    "price_pro_m",
			Metadata:   map[string]string{payments.MetadataUserIDKey: "user_1"},
		}
		svc, _ := newTestBillingService(t, gateway)

		// Subscription reference arrives nested, the newer payload layout.
		payload := []byte(`{"id": "in_1", "parent": {"subscription_details": {"subscription": "sub_1"}}}`)
		require.NoError(t, svc.HandleWebhookEvent(ctx, "invoice.payment_succeeded", payload))

		record, err := svc.GetSubscription(ctx, "user_1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.SubscriptionStatusActive, record.Status)
	})

	t.Run("invoice without a subscription reference is a no-op", func(t *testing.T) {
		gateway := newFakeGateway()
		svc, _ := newTestBillingService(t, gateway)

		payload := []byte(`{"id": "in_1", "customer": "cus_1"}`)
		assert.NoError(t, svc.HandleWebhookEvent(ctx, "invoice.payment_succeeded", payload))
	})
}

func TestHandleWebhookEvent_UnhandledType(t *testing.T) {
	gateway := newFakeGateway()
	svc, _ := newTestBillingService(t, gateway)

	assert.NoError(t, svc.HandleWebhookEvent(context.Background(), "customer.updated", []byte(`{}`)))
}

func TestGetSubscription_NoRecord(t *testing.T) {
	gateway := newFakeGateway()
	svc, _ := newTestBillingService(t, gateway)

	record, err := svc.GetSubscription(context.Background(), "user_without_record")
	require.NoError(t, err)
	assert.Nil(t, record)
}
