package subscription

import (
	"context"

	"github.com/craftly/craftly/internal/types"
)

// Repository defines the interface for subscription persistence operations.
// Update enforces optimistic concurrency: the write succeeds only when the
// stored version matches the record's version, and increments it; stale
// writers receive an error marked ErrVersionConflict.
type Repository interface {
	// Create persists a new subscription
	Create(ctx context.Context, sub *Subscription) error

	// Get retrieves a subscription by ID
	Get(ctx context.Context, id string) (*Subscription, error)

	// List retrieves subscriptions matching the filter
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)

	// Update persists the record under optimistic concurrency
	Update(ctx context.Context, sub *Subscription) error
}
