package service

import (
	"context"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
)

// UsageService tracks consumed vs. included service units per subscription
// period. Usage is never clamped; pack-exceeded billing picks up the
// overage on the next scheduler pass.
type UsageService interface {
	// RecordUsage increments the subscription's consumed units and returns
	// the new total
	RecordUsage(ctx context.Context, subscriptionID string, units int64) (int64, error)

	// IsOverLimit reports whether the subscription consumed more units than
	// its pack includes
	IsOverLimit(sub *subscription.Subscription) bool
}

type usageService struct {
	ServiceParams
}

func NewUsageService(params ServiceParams) UsageService {
	return &usageService{
		ServiceParams: params,
	}
}

func (s *usageService) RecordUsage(ctx context.Context, subscriptionID string, units int64) (int64, error) {
	if subscriptionID == "" {
		return 0, ierr.NewError("subscription ID is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}

	newTotal, err := sub.RecordUsage(units)
	if err != nil {
		return 0, err
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return 0, err
	}

	if sub.IsOverLimit() {
		s.Logger.Infow("subscription exceeded included units",
			"subscription_id", sub.ID,
			"units_used", sub.TotalUnitsUsed,
			"units_included", sub.TotalUnitsIncluded)
	}

	return newTotal, nil
}

func (s *usageService) IsOverLimit(sub *subscription.Subscription) bool {
	return sub != nil && sub.IsOverLimit()
}
