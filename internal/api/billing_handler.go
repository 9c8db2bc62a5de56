package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stashly-backend-go/internal/core"
	"stashly-backend-go/internal/middleware"
	"stashly-backend-go/internal/payments"
)

// BillingHandler handles plan listing, subscription checkout and the
// pass-through payment endpoints.
type BillingHandler struct {
	billingService core.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, logger: logger}
}

// mapBillingError maps service errors onto HTTP statuses: bad plan selections
// are the caller's fault, downstream provider failures are a bad gateway.
func (h *BillingHandler) mapBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrPlanNotFound):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown plan or billing cycle", Details: err.Error()})
	case errors.Is(err, payments.ErrProvider):
		h.logger.Error("payment provider call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Payment provider error"})
	default:
		h.logger.Error("unexpected billing error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred"})
	}
}

// GetPlans handles GET /plans.
func (h *BillingHandler) GetPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.billingService.Plans()})
}

// CreateSubscription handles POST /create-subscription. Identity comes from
// the auth context when present, otherwise from the request body.
func (h *BillingHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	userID := c.GetString(middleware.ContextUserIDKey)
	email := c.GetString(middleware.ContextUserEmailKey)
	name := c.GetString(middleware.ContextDisplayNameKey)
	if email == "" {
		email = strings.TrimSpace(req.Email)
	}
	if name == "" {
		name = strings.TrimSpace(req.Name)
	}
	if email == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "An email is required to create a subscription"})
		return
	}

	checkout, err := h.billingService.CreateSubscription(c.Request.Context(), userID, req.PlanID, req.BillingCycle, email, name)
	if err != nil {
		h.mapBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// GetSubscriptionStatus handles GET /subscription-status for the
// authenticated caller. A user without a record gets a null subscription.
func (h *BillingHandler) GetSubscriptionStatus(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}

	record, err := h.billingService.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		h.mapBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": record})
}

// CreateCustomer handles POST /create-customer (back-compat pass-through).
func (h *BillingHandler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	customerID, err := h.billingService.FindOrCreateCustomer(c.Request.Context(), req.Email, req.Name, c.GetString(middleware.ContextUserIDKey))
	if err != nil {
		h.mapBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, CreateCustomerResponse{CustomerID: customerID})
}

// CreatePaymentIntent handles POST /create-payment-intent (back-compat).
func (h *BillingHandler) CreatePaymentIntent(c *gin.Context) {
	var req CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Amount must be positive"})
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	intent, err := h.billingService.CreatePaymentIntent(c.Request.Context(), req.Amount, currency, req.Metadata)
	if err != nil {
		h.mapBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": intent.ID, "clientSecret": intent.ClientSecret})
}

// GetPaymentIntent handles GET /payment-intent/:id (back-compat).
func (h *BillingHandler) GetPaymentIntent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Payment intent id is required"})
		return
	}

	intent, err := h.billingService.GetPaymentIntent(c.Request.Context(), id)
	if err != nil {
		h.mapBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       intent.ID,
		"status":   intent.Status,
		"amount":   intent.Amount,
		"currency": intent.Currency,
	})
}
