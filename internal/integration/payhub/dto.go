package payhub

// ChargeRequest is the wire request for POST /v1/charges
type ChargeRequest struct {
	SubscriptionID string `json:"subscription_id"`
	// Amount in minor units (cents)
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	// IdempotencyKey dedupes retried requests processor-side
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ChargeResponse is the wire response for a charge attempt
type ChargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"` // succeeded | declined | failed
	Subscription  string `json:"subscription_id"`
	FailureCode   string `json:"failure_code,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// StatusResponse is the wire response for GET /v1/subscriptions/{id}
type StatusResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"` // active | past_due | canceled | trialing
}

// ErrorResponse is the processor's error envelope
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	chargeStatusSucceeded = "succeeded"
	chargeStatusDeclined  = "declined"
)

// Decline codes that will not succeed on retry
var permanentFailureCodes = map[string]bool{
	"card_declined":   true,
	"card_expired":    true,
	"account_closed":  true,
	"fraud_suspected": true,
}
