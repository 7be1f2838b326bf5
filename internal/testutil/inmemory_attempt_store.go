package testutil

import (
	"context"
	"sync"

	"time"

	"github.com/craftly/craftly/internal/domain/billing"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// InMemoryAttemptStore implements billing.AttemptRepository. It enforces the
// same uniqueness rule as the postgres partial index: at most one successful
// attempt per idempotency key.
type InMemoryAttemptStore struct {
	mu       sync.RWMutex
	attempts []*billing.Attempt
}

func NewInMemoryAttemptStore() *InMemoryAttemptStore {
	return &InMemoryAttemptStore{}
}

func (s *InMemoryAttemptStore) Create(_ context.Context, attempt *billing.Attempt) error {
	if attempt == nil {
		return ierr.NewError("attempt cannot be nil").
			WithHint("Attempt cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt.Success {
		for _, existing := range s.attempts {
			if existing.Success && existing.IdempotencyKey == attempt.IdempotencyKey {
				return ierr.NewError("successful attempt already recorded").
					WithHint("A successful charge already exists for this key").
					WithReportableDetails(map[string]interface{}{
						"idempotency_key": attempt.IdempotencyKey,
						"subscription_id": attempt.SubscriptionID,
					}).
					Mark(ierr.ErrAlreadyExists)
			}
		}
	}

	copied := *attempt
	s.attempts = append(s.attempts, &copied)
	return nil
}

func (s *InMemoryAttemptStore) HasSuccessful(_ context.Context, subscriptionID string, runType types.BillingRunType, periodStart time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.attempts {
		if a.Success && a.SubscriptionID == subscriptionID && a.RunType == runType && a.PeriodStart.Equal(periodStart) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryAttemptStore) CountAttempts(_ context.Context, subscriptionID string, runType types.BillingRunType, periodStart time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.attempts {
		if a.SubscriptionID == subscriptionID && a.RunType == runType && a.PeriodStart.Equal(periodStart) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryAttemptStore) HasPermanentFailure(_ context.Context, subscriptionID string, periodStart time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.attempts {
		if a.Permanent && a.SubscriptionID == subscriptionID && a.PeriodStart.Equal(periodStart) {
			return true, nil
		}
	}
	return false, nil
}

// Attempts returns a snapshot of every recorded attempt, newest last
func (s *InMemoryAttemptStore) Attempts() []*billing.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*billing.Attempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		copied := *a
		result = append(result, &copied)
	}
	return result
}

func (s *InMemoryAttemptStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = nil
}
