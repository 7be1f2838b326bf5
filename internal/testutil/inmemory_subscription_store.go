package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository with the same
// optimistic-concurrency contract as the postgres repository: Update succeeds
// only when the stored version matches, and increments it.
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]

	// guards the version check-and-increment in Update
	updateMu sync.Mutex
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}

	copied := *sub
	copied.EndDate = copyTimePtr(sub.EndDate)
	copied.PaymentReference = copyStringPtr(sub.PaymentReference)
	copied.PaymentStatus = copyPaymentStatusPtr(sub.PaymentStatus)
	copied.PaymentFailedAt = copyTimePtr(sub.PaymentFailedAt)
	copied.GracePeriodEnd = copyTimePtr(sub.GracePeriodEnd)
	copied.VendorAssigneeID = copyStringPtr(sub.VendorAssigneeID)
	copied.PendingVendorAssigneeID = copyStringPtr(sub.PendingVendorAssigneeID)
	copied.PendingPackID = copyStringPtr(sub.PendingPackID)
	copied.PendingChangeType = copyPendingChangeTypePtr(sub.PendingChangeType)
	copied.PendingEffectiveAt = copyTimePtr(sub.PendingEffectiveAt)
	copied.UnsubscribedAt = copyTimePtr(sub.UnsubscribedAt)
	copied.UnsubscribeEffectiveAt = copyTimePtr(sub.UnsubscribeEffectiveAt)
	return &copied
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if sub.EnvironmentID == "" {
		sub.EnvironmentID = types.GetEnvironmentID(ctx)
	}

	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			WithReportableDetails(map[string]interface{}{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}

	subs, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}

	// Apply pagination after filtering
	offset := filter.QueryFilter.GetOffset()
	limit := filter.QueryFilter.GetLimit()
	if offset > 0 {
		if offset >= len(subs) {
			subs = nil
		} else {
			subs = subs[offset:]
		}
	}
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}

	result := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		result = append(result, copySubscription(sub))
	}
	return result, nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	stored, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			WithReportableDetails(map[string]interface{}{
				"id": sub.ID,
			}).
			Mark(ierr.ErrNotFound)
	}

	if stored.Version != sub.Version {
		return ierr.NewError("subscription was modified concurrently").
			WithHint("Reload the subscription and retry the update").
			WithReportableDetails(map[string]interface{}{
				"id":               sub.ID,
				"expected_version": sub.Version,
				"stored_version":   stored.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version++
	sub.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub))
}

func subscriptionFilterFn(ctx context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub == nil {
		return false
	}

	f, ok := filter.(*types.SubscriptionFilter)
	if !ok {
		return true
	}

	if tenantID := types.GetTenantID(ctx); tenantID != "" && sub.TenantID != tenantID {
		return false
	}
	if environmentID := types.GetEnvironmentID(ctx); environmentID != "" && sub.EnvironmentID != environmentID {
		return false
	}

	if len(f.SubscriptionIDs) > 0 && !lo.Contains(f.SubscriptionIDs, sub.ID) {
		return false
	}
	if len(f.SubscriptionStatuses) > 0 && !lo.Contains(f.SubscriptionStatuses, sub.SubscriptionStatus) {
		return false
	}
	if len(f.PackIDs) > 0 && !lo.Contains(f.PackIDs, sub.PackID) {
		return false
	}
	if f.PeriodEndBefore != nil && sub.CurrentPeriodEnd.After(*f.PeriodEndBefore) {
		return false
	}
	if f.OverLimitOnly && !sub.IsOverLimit() {
		return false
	}

	return true
}

func subscriptionSortFn(i, j *subscription.Subscription) bool {
	if i == nil || j == nil {
		return false
	}
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

func copyPaymentStatusPtr(p *types.PaymentStatus) *types.PaymentStatus {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}

func copyPendingChangeTypePtr(p *types.PendingChangeType) *types.PendingChangeType {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}
