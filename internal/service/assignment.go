package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// conflictRetries bounds how often an assignment write is retried when it
// races a concurrent billing pass on the same subscription
const conflictRetries = 3

// AssignmentResult is the per-subscription outcome of a bulk assignment
type AssignmentResult struct {
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// BulkAssignmentResult aggregates a bulk vendor assignment call
type BulkAssignmentResult struct {
	Results      []AssignmentResult `json:"results"`
	SuccessCount int                `json:"success_count"`
	FailedCount  int                `json:"failed_count"`
}

// AssignmentService applies immediate or scheduled vendor reassignment to
// subscriptions. Each subscription is handled independently so a failure
// never aborts the remainder of a bulk call.
type AssignmentService interface {
	// AssignVendors assigns the vendor to each subscription; immediate
	// writes the live field now, scheduled takes effect at the next period
	// start
	AssignVendors(ctx context.Context, subscriptionIDs []string, vendorID string, assignmentType types.AssignmentType) (*BulkAssignmentResult, error)
}

type assignmentService struct {
	ServiceParams
}

func NewAssignmentService(params ServiceParams) AssignmentService {
	return &assignmentService{
		ServiceParams: params,
	}
}

func (s *assignmentService) AssignVendors(ctx context.Context, subscriptionIDs []string, vendorID string, assignmentType types.AssignmentType) (*BulkAssignmentResult, error) {
	if vendorID == "" {
		return nil, ierr.NewError("vendor ID is required").
			WithHint("Please provide a valid vendor ID").
			Mark(ierr.ErrValidation)
	}
	if len(subscriptionIDs) == 0 {
		return nil, ierr.NewError("at least one subscription ID is required").
			WithHint("Provide the subscriptions to assign").
			Mark(ierr.ErrValidation)
	}
	if err := assignmentType.Validate(); err != nil {
		return nil, err
	}

	result := &BulkAssignmentResult{
		Results: make([]AssignmentResult, 0, len(subscriptionIDs)),
	}

	for _, id := range subscriptionIDs {
		if err := s.assignOne(ctx, id, vendorID, assignmentType); err != nil {
			s.Logger.Errorw("vendor assignment failed",
				"subscription_id", id,
				"vendor_id", vendorID,
				"assignment_type", assignmentType,
				"error", err)
			result.Results = append(result.Results, AssignmentResult{
				SubscriptionID: id,
				Success:        false,
				Error:          err.Error(),
			})
			result.FailedCount++
			continue
		}
		result.Results = append(result.Results, AssignmentResult{
			SubscriptionID: id,
			Success:        true,
		})
		result.SuccessCount++
	}

	s.Logger.Infow("bulk vendor assignment completed",
		"vendor_id", vendorID,
		"assignment_type", assignmentType,
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount)

	return result, nil
}

// assignOne retries on version conflicts only; a conflict means a scheduler
// pass updated the record between our read and write
func (s *assignmentService) assignOne(ctx context.Context, subscriptionID, vendorID string, assignmentType types.AssignmentType) error {
	operation := func() error {
		sub, err := s.SubRepo.Get(ctx, subscriptionID)
		if err != nil {
			return backoff.Permanent(err)
		}

		switch assignmentType {
		case types.AssignmentTypeImmediate:
			sub.AssignVendorNow(vendorID)
		case types.AssignmentTypeScheduled:
			sub.ScheduleVendorChange(vendorID, sub.CurrentPeriodEnd)
		}

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			if ierr.IsVersionConflict(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
	), conflictRetries)

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
