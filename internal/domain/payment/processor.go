package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/craftly/craftly/internal/types"
)

// Processor is the external payment collaborator. Implementations wrap a
// concrete provider; the billing core treats it as an opaque capability.
type Processor interface {
	// Charge attempts to collect the given amount for a subscription. The
	// idempotency key identifies the billing attempt (subscription, run
	// type, period) so the processor can dedupe a replayed request without
	// ever collapsing distinct periods onto one charge
	Charge(ctx context.Context, subscriptionID string, amount decimal.Decimal, idempotencyKey string) (*ChargeResult, error)

	// GetStatus returns the processor-side status of a subscription
	GetStatus(ctx context.Context, subscriptionID string) (types.PaymentStatus, error)
}

// ChargeResult is the outcome of one charge attempt. A transport or timeout
// failure is returned as an error; a declined charge comes back as a result
// with Success=false so the caller can distinguish permanent declines from
// transient failures.
type ChargeResult struct {
	Success        bool                `json:"success"`
	ExternalStatus types.PaymentStatus `json:"external_status"`
	FailureReason  string              `json:"failure_reason,omitempty"`

	// Permanent marks declines that will not succeed on retry, e.g. a
	// canceled card. Transient failures (timeouts, 5xx) leave it false.
	Permanent bool `json:"permanent,omitempty"`
}
