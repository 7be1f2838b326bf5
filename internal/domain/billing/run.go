package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/craftly/craftly/internal/types"
)

// BillingRun is the ephemeral record of one scheduler pass. It is surfaced
// in run summaries and logs; only the per-attempt ledger entries persist.
type BillingRun struct {
	ID          string                `json:"id"`
	RunType     types.BillingRunType  `json:"run_type"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`
	Outcomes    []SubscriptionOutcome `json:"outcomes"`
}

// SubscriptionOutcome is the per-subscription result within a run
type SubscriptionOutcome struct {
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	Skipped        bool   `json:"skipped,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// SuccessCount returns the number of successful outcomes
func (r *BillingRun) SuccessCount() int {
	count := 0
	for _, o := range r.Outcomes {
		if o.Success {
			count++
		}
	}
	return count
}

// FailedCount returns the number of failed outcomes
func (r *BillingRun) FailedCount() int {
	count := 0
	for _, o := range r.Outcomes {
		if !o.Success && !o.Skipped {
			count++
		}
	}
	return count
}

// Attempt is one persisted charge attempt, keyed so that a re-run of the
// same pass for the same period cannot double-charge a subscription
type Attempt struct {
	ID             string               `json:"id"`
	IdempotencyKey string               `json:"idempotency_key"`
	SubscriptionID string               `json:"subscription_id"`
	RunType        types.BillingRunType `json:"run_type"`
	PeriodStart    time.Time            `json:"period_start"`
	Amount         decimal.Decimal      `json:"amount"`
	Success        bool                 `json:"success"`
	FailureReason  string               `json:"failure_reason,omitempty"`

	// Permanent marks a decline the processor says will never succeed on
	// retry; the retry pass skips the subscription for the period
	Permanent bool `json:"permanent,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	TenantID      string    `json:"tenant_id"`
	EnvironmentID string    `json:"environment_id"`
}
