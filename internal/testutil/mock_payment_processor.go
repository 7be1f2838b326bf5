package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/craftly/craftly/internal/domain/payment"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// ChargeCall records one invocation of Charge for assertions
type ChargeCall struct {
	SubscriptionID string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// MockPaymentProcessor implements payment.Processor with scripted outcomes.
// Unscripted subscriptions succeed. Tests can script a decline, a transport
// error, or a sequence of results consumed one per call.
type MockPaymentProcessor struct {
	mu sync.Mutex

	results  map[string][]*payment.ChargeResult
	errors   map[string]error
	statuses map[string]types.PaymentStatus
	calls    []ChargeCall
}

func NewMockPaymentProcessor() *MockPaymentProcessor {
	return &MockPaymentProcessor{
		results:  make(map[string][]*payment.ChargeResult),
		errors:   make(map[string]error),
		statuses: make(map[string]types.PaymentStatus),
	}
}

// ScriptResult queues a charge result for the subscription; queued results
// are consumed one per call, and charges succeed once the queue drains
func (m *MockPaymentProcessor) ScriptResult(subscriptionID string, result *payment.ChargeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[subscriptionID] = append(m.results[subscriptionID], result)
}

// ScriptDecline queues a non-permanent decline
func (m *MockPaymentProcessor) ScriptDecline(subscriptionID, reason string) {
	m.ScriptResult(subscriptionID, &payment.ChargeResult{
		Success:        false,
		ExternalStatus: types.PaymentStatusPastDue,
		FailureReason:  reason,
	})
}

// ScriptPermanentDecline queues a decline that will not succeed on retry
func (m *MockPaymentProcessor) ScriptPermanentDecline(subscriptionID, reason string) {
	m.ScriptResult(subscriptionID, &payment.ChargeResult{
		Success:        false,
		ExternalStatus: types.PaymentStatusPastDue,
		FailureReason:  reason,
		Permanent:      true,
	})
}

// ScriptError makes Charge return a transport-level error for the subscription
func (m *MockPaymentProcessor) ScriptError(subscriptionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[subscriptionID] = err
}

// SetStatus sets the processor-side status returned by GetStatus
func (m *MockPaymentProcessor) SetStatus(subscriptionID string, status types.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[subscriptionID] = status
}

func (m *MockPaymentProcessor) Charge(_ context.Context, subscriptionID string, amount decimal.Decimal, idempotencyKey string) (*payment.ChargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ChargeCall{SubscriptionID: subscriptionID, Amount: amount, IdempotencyKey: idempotencyKey})

	if err, exists := m.errors[subscriptionID]; exists {
		return nil, err
	}

	queue := m.results[subscriptionID]
	if len(queue) == 0 {
		return &payment.ChargeResult{
			Success:        true,
			ExternalStatus: types.PaymentStatusActive,
		}, nil
	}

	result := queue[0]
	m.results[subscriptionID] = queue[1:]
	copied := *result
	return &copied, nil
}

func (m *MockPaymentProcessor) GetStatus(_ context.Context, subscriptionID string) (types.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, exists := m.statuses[subscriptionID]
	if !exists {
		return "", ierr.NewError("no payment status recorded").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": subscriptionID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return status, nil
}

// Calls returns a snapshot of the recorded charge calls in order
func (m *MockPaymentProcessor) Calls() []ChargeCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ChargeCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// ChargeCount returns the number of charges attempted for the subscription
func (m *MockPaymentProcessor) ChargeCount(subscriptionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, c := range m.calls {
		if c.SubscriptionID == subscriptionID {
			count++
		}
	}
	return count
}
