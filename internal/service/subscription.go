package service

import (
	"context"
	"time"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// SubscriptionService exposes the lifecycle operations issued by the admin
// surface. Time-triggered transitions (renewal, retry, grace expiry) live in
// BillingService.
type SubscriptionService interface {
	// Get retrieves a subscription by ID
	Get(ctx context.Context, id string) (*subscription.Subscription, error)

	// List retrieves subscriptions matching the filter
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error)

	// SchedulePackChange records a pack change effective at the next period
	// start; upgrade/downgrade semantics are carried as the change type
	SchedulePackChange(ctx context.Context, subscriptionID, packID string, changeType types.PendingChangeType) (*subscription.Subscription, error)

	// CancelPendingVendorChange clears a scheduled vendor/pack change
	// without touching live state
	CancelPendingVendorChange(ctx context.Context, subscriptionID string) (*subscription.Subscription, error)

	// Unsubscribe soft-cancels the subscription at the end of the current
	// paid period
	Unsubscribe(ctx context.Context, subscriptionID string) (*subscription.Subscription, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

func (s *subscriptionService) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	if id == "" {
		return nil, ierr.NewError("subscription ID is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation)
	}
	return s.SubRepo.Get(ctx, id)
}

func (s *subscriptionService) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	return s.SubRepo.List(ctx, filter)
}

func (s *subscriptionService) SchedulePackChange(ctx context.Context, subscriptionID, packID string, changeType types.PendingChangeType) (*subscription.Subscription, error) {
	if packID == "" {
		return nil, ierr.NewError("pack ID is required").
			WithHint("Please provide a valid pack ID").
			Mark(ierr.ErrValidation)
	}
	if err := changeType.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewErrorf("cannot schedule a pack change in status %s", sub.SubscriptionStatus).
			WithHint("Pack changes can only be scheduled on active subscriptions").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": sub.ID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	// Confirm the target pack exists before scheduling
	if _, err := s.CatalogRepo.GetPricedEntity(ctx, packID); err != nil {
		return nil, err
	}

	sub.SchedulePackChange(packID, changeType, sub.CurrentPeriodEnd)
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("scheduled pack change",
		"subscription_id", sub.ID,
		"target_pack_id", packID,
		"change_type", changeType,
		"effective_at", sub.CurrentPeriodEnd)

	return sub, nil
}

func (s *subscriptionService) CancelPendingVendorChange(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if err := sub.CancelPendingChange(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("canceled pending change", "subscription_id", sub.ID)
	return sub, nil
}

func (s *subscriptionService) Unsubscribe(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := sub.RequestCancellation(now); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription cancellation requested",
		"subscription_id", sub.ID,
		"effective_at", sub.UnsubscribeEffectiveAt)

	return sub, nil
}
