package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stashly-backend-go/internal/db"
	"stashly-backend-go/internal/models"
	"stashly-backend-go/internal/payments"
)

// Subscription metadata keys written at creation time and read back during
// webhook reconciliation.
const (
	metadataPlanIDKey       = "planId"
	metadataBillingCycleKey = "billingCycle"
)

type billingService struct {
	catalog *PriceCatalog
	gateway payments.Gateway
	subs    db.SubscriptionRepository
	logger  *zap.Logger
}

// NewBillingService wires the price catalog, payment gateway and
// subscription repository into a BillingService.
func NewBillingService(catalog *PriceCatalog, gateway payments.Gateway, subs db.SubscriptionRepository, logger *zap.Logger) BillingService {
	return &billingService{
		catalog: catalog,
		gateway: gateway,
		subs:    subs,
		logger:  logger,
	}
}

func (s *billingService) Plans() []PlanPrices {
	return s.catalog.Plans()
}

// FindOrCreateCustomer queries the provider for an existing customer by exact
// email match. An existing customer missing the internal-user correlation tag
// gets it backfilled; a failed backfill is logged and ignored since the
// customer itself is still usable.
func (s *billingService) FindOrCreateCustomer(ctx context.Context, email, displayName, userID string) (string, error) {
	existing, err := s.gateway.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if userID != "" && existing.Metadata[payments.MetadataUserIDKey] == "" {
			tag := map[string]string{payments.MetadataUserIDKey: userID}
			if tagErr := s.gateway.SetCustomerMetadata(ctx, existing.ID, tag); tagErr != nil {
				s.logger.Warn("failed to backfill user tag on existing customer",
					zap.String("customerId", existing.ID),
					zap.Error(tagErr))
			}
		}
		return existing.ID, nil
	}

	metadata := map[string]string{}
	if userID != "" {
		metadata[payments.MetadataUserIDKey] = userID
	}
	created, err := s.gateway.CreateCustomer(ctx, email, displayName, metadata)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *billingService) CreateSubscription(ctx context.Context, userID, planID, billingCycle, email, displayName string) (*SubscriptionCheckout, error) {
	priceID, err := s.catalog.ResolvePriceID(planID, billingCycle)
	if err != nil {
		return nil, err
	}

	customerID, err := s.FindOrCreateCustomer(ctx, email, displayName, userID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		metadataPlanIDKey:       planID,
		metadataBillingCycleKey: billingCycle,
	}
	if userID != "" {
		metadata[payments.MetadataUserIDKey] = userID
	}
	created, err := s.gateway.CreateSubscription(ctx, payments.CreateSubscriptionParams{
		CustomerID: customerID,
		PriceID:    priceID,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	// If this fails the subscription already exists in "incomplete" state;
	// it expires on the provider's own policy rather than being rolled back.
	ephemeralSecret, err := s.gateway.CreateEphemeralKey(ctx, customerID)
	if err != nil {
		s.logger.Error("ephemeral key creation failed after subscription was created",
			zap.String("subscriptionId", created.ID),
			zap.String("customerId", customerID),
			zap.Error(err))
		return nil, err
	}

	return &SubscriptionCheckout{
		SubscriptionID:     created.ID,
		CustomerID:         customerID,
		ClientSecret:       created.PaymentClientSecret,
		EphemeralKeySecret: ephemeralSecret,
	}, nil
}

func (s *billingService) GetSubscription(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	record, err := s.subs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (s *billingService) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payments.PaymentIntent, error) {
	return s.gateway.CreatePaymentIntent(ctx, amount, currency, metadata)
}

func (s *billingService) GetPaymentIntent(ctx context.Context, id string) (*payments.PaymentIntent, error) {
	return s.gateway.GetPaymentIntent(ctx, id)
}

// subscriptionUpdate is the canonical shape every handled event is normalized
// into before being merged onto the user's record.
type subscriptionUpdate struct {
	subscriptionID    string
	customerID        string
	status            string
	priceID           string
	currentPeriodEnd  time.Time // zero when the event did not report one
	cancelAtPeriodEnd bool
	metadata          map[string]string
}

// identityHints carries the checkout-session linkage fields that can resolve
// a user when the subscription itself carries no correlation tag.
type identityHints struct {
	sessionMetadata map[string]string
	clientReference string
}

// HandleWebhookEvent dispatches a signature-verified event to the
// reconciliation procedure. Event kinds outside the handled set are
// acknowledged as no-ops so the provider does not retry them.
func (s *billingService) HandleWebhookEvent(ctx context.Context, eventType string, data []byte) error {
	switch eventType {
	case "checkout.session.completed":
		var session webhookCheckoutSession
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		if session.Subscription == "" {
			s.logger.Info("checkout session completed without a subscription; ignoring",
				zap.String("sessionId", session.ID))
			return nil
		}
		// Resolve the referenced subscription first, then process it exactly
		// like a subscription update.
		sub, err := s.gateway.GetSubscription(ctx, session.Subscription)
		if err != nil {
			return fmt.Errorf("resolve subscription for checkout session %s: %w", session.ID, err)
		}
		hints := identityHints{
			sessionMetadata: session.Metadata,
			clientReference: session.ClientReferenceID,
		}
		return s.reconcile(ctx, updateFromGateway(sub), hints, "")

	case "customer.subscription.created", "customer.subscription.updated":
		update, err := decodeSubscriptionEvent(data)
		if err != nil {
			return err
		}
		return s.reconcile(ctx, update, identityHints{}, "")

	case "customer.subscription.deleted":
		update, err := decodeSubscriptionEvent(data)
		if err != nil {
			return err
		}
		// Deletion always lands as canceled, whatever status the event carries.
		return s.reconcile(ctx, update, identityHints{}, models.SubscriptionStatusCanceled)

	case "invoice.payment_succeeded":
		return s.reconcileInvoice(ctx, data, "")

	case "invoice.payment_failed":
		return s.reconcileInvoice(ctx, data, models.SubscriptionStatusPastDue)

	default:
		s.logger.Info("ignoring unhandled webhook event type", zap.String("type", eventType))
		return nil
	}
}

// reconcileInvoice handles invoice events. Invoices not tied to a
// subscription (e.g. one-off payments) are ignored; otherwise the referenced
// subscription is fetched and applied with the given forced status, if any.
func (s *billingService) reconcileInvoice(ctx context.Context, data []byte, forcedStatus string) error {
	var invoice webhookInvoice
	if err := json.Unmarshal(data, &invoice); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	subscriptionID := invoice.subscriptionID()
	if subscriptionID == "" {
		s.logger.Info("invoice event without a subscription reference; ignoring",
			zap.String("invoiceId", invoice.ID))
		return nil
	}
	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("resolve subscription for invoice %s: %w", invoice.ID, err)
	}
	return s.reconcile(ctx, updateFromGateway(sub), identityHints{}, forcedStatus)
}

// reconcile resolves which user the update belongs to and merge-writes the
// canonical record. Identity resolution order: correlation metadata on the
// subscription, then on the checkout session, then the session's client
// reference, then the stored tag on the payment customer. Events with no
// resolvable user are dropped with a warning — deliberately not an error, or
// the provider would redeliver them forever.
func (s *billingService) reconcile(ctx context.Context, update subscriptionUpdate, hints identityHints, forcedStatus string) error {
	userID := update.metadata[payments.MetadataUserIDKey]
	if userID == "" && hints.sessionMetadata != nil {
		userID = hints.sessionMetadata[payments.MetadataUserIDKey]
	}
	if userID == "" {
		userID = hints.clientReference
	}
	if userID == "" && update.customerID != "" {
		customer, err := s.gateway.GetCustomer(ctx, update.customerID)
		if err != nil {
			s.logger.Warn("customer lookup failed during identity resolution",
				zap.String("customerId", update.customerID),
				zap.Error(err))
		} else if customer != nil {
			userID = customer.Metadata[payments.MetadataUserIDKey]
		}
	}
	if userID == "" {
		s.logger.Warn("dropping subscription event with no resolvable user",
			zap.String("subscriptionId", update.subscriptionID),
			zap.String("customerId", update.customerID))
		return nil
	}

	status := update.status
	if forcedStatus != "" {
		status = forcedStatus
	}

	fields := map[string]interface{}{
		db.FieldStatus:               status,
		db.FieldStripeCustomerID:     update.customerID,
		db.FieldStripeSubscriptionID: update.subscriptionID,
		db.FieldCancelAtPeriodEnd:    update.cancelAtPeriodEnd,
	}
	// Plan fields are always recomputed from the price id. An unresolvable
	// price writes them as null: partial information beats dropping the event.
	if planID, cycle, ok := s.catalog.ReverseLookup(update.priceID); ok {
		fields[db.FieldPlanID] = planID
		fields[db.FieldBillingCycle] = cycle
	} else {
		fields[db.FieldPlanID] = nil
		fields[db.FieldBillingCycle] = nil
	}
	if !update.currentPeriodEnd.IsZero() {
		fields[db.FieldCurrentPeriodEnd] = update.currentPeriodEnd
	}

	if err := s.subs.Merge(ctx, userID, fields); err != nil {
		return fmt.Errorf("merge subscription record for user %s: %w", userID, err)
	}
	s.logger.Info("subscription record reconciled",
		zap.String("userId", userID),
		zap.String("subscriptionId", update.subscriptionID),
		zap.String("status", status))
	return nil
}

func decodeSubscriptionEvent(data []byte) (subscriptionUpdate, error) {
	var sub webhookSubscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return subscriptionUpdate{}, fmt.Errorf("decode subscription: %w", err)
	}
	update := subscriptionUpdate{
		subscriptionID:    sub.ID,
		customerID:        sub.Customer,
		status:            sub.Status,
		priceID:           sub.firstPriceID(),
		cancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		metadata:          sub.Metadata,
	}
	if end := sub.periodEnd(); end > 0 {
		update.currentPeriodEnd = time.Unix(end, 0).UTC()
	}
	return update, nil
}

func updateFromGateway(sub *payments.Subscription) subscriptionUpdate {
	if sub == nil {
		return subscriptionUpdate{}
	}
	return subscriptionUpdate{
		subscriptionID:    sub.ID,
		customerID:        sub.CustomerID,
		status:            sub.Status,
		priceID:           sub.PriceID,
		currentPeriodEnd:  sub.CurrentPeriodEnd,
		cancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		metadata:          sub.Metadata,
	}
}
