package billing

import (
	"context"
	"time"

	"github.com/craftly/craftly/internal/types"
)

// AttemptRepository is the per-(subscription, period, run type) charge
// ledger backing billing idempotency
type AttemptRepository interface {
	// Create persists an attempt; a duplicate idempotency key for a
	// successful attempt fails with ErrAlreadyExists
	Create(ctx context.Context, attempt *Attempt) error

	// HasSuccessful reports whether a successful attempt exists for the
	// subscription, run type and period
	HasSuccessful(ctx context.Context, subscriptionID string, runType types.BillingRunType, periodStart time.Time) (bool, error)

	// CountAttempts returns the number of attempts recorded for the
	// subscription, run type and period
	CountAttempts(ctx context.Context, subscriptionID string, runType types.BillingRunType, periodStart time.Time) (int, error)

	// HasPermanentFailure reports whether any attempt in the period, from
	// any run type, was declined permanently
	HasPermanentFailure(ctx context.Context, subscriptionID string, periodStart time.Time) (bool, error)
}
