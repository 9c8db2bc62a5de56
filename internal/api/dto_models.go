package api

// ErrorResponse is the generic error body returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreateSubscriptionRequest starts a subscription checkout. Email and name
// come from the auth context when the caller is authenticated; the body
// fields remain accepted for clients of the pre-auth API revisions.
type CreateSubscriptionRequest struct {
	PlanID       string `json:"planId" binding:"required"`
	BillingCycle string `json:"billingCycle" binding:"required"`
	Email        string `json:"email"`
	Name         string `json:"name"`
}

// CreateCustomerRequest is the pass-through customer creation body.
type CreateCustomerRequest struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name"`
}

// CreateCustomerResponse returns the resolved billing customer id.
type CreateCustomerResponse struct {
	CustomerID string `json:"customerId"`
}

// CreatePaymentIntentRequest is the pass-through payment-intent body.
type CreatePaymentIntentRequest struct {
	Amount   int64             `json:"amount" binding:"required"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// AnalyzeMetadata is optional caller-supplied context for classification.
type AnalyzeMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// AnalyzeRequest asks the classifier to file a piece of content.
// PreferredFolders wins over CurrentFolders when both are present; the two
// names exist for compatibility with different client revisions.
type AnalyzeRequest struct {
	Type             string           `json:"type" binding:"required"`
	URL              string           `json:"url"`
	Metadata         *AnalyzeMetadata `json:"metadata"`
	ImageBase64      string           `json:"imageBase64"`
	CurrentFolders   []string         `json:"currentFolders"`
	PreferredFolders []string         `json:"preferredFolders"`
}

// SessionTokenResponse carries the minted secondary session credential.
type SessionTokenResponse struct {
	Token string `json:"token"`
}
