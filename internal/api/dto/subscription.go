package dto

import (
	"time"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// SubscriptionResponse is the wire representation of a subscription. It
// carries the derived display status alongside the persisted one.
type SubscriptionResponse struct {
	*subscription.Subscription

	// display_status surfaces grace_period while a past-due subscription is
	// inside its grace window
	DisplayStatus types.SubscriptionStatus `json:"display_status"`
}

func SubscriptionResponseFromDomain(sub *subscription.Subscription) *SubscriptionResponse {
	if sub == nil {
		return nil
	}
	return &SubscriptionResponse{
		Subscription:  sub,
		DisplayStatus: sub.DisplayStatus(time.Now().UTC()),
	}
}

// ListSubscriptionsResponse wraps a subscription listing
type ListSubscriptionsResponse struct {
	Items []*SubscriptionResponse `json:"items"`
	Count int                     `json:"count"`
}

func ListSubscriptionsResponseFromDomain(subs []*subscription.Subscription) *ListSubscriptionsResponse {
	items := make([]*SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, SubscriptionResponseFromDomain(sub))
	}
	return &ListSubscriptionsResponse{Items: items, Count: len(items)}
}

// ListSubscriptionsRequest carries the query parameters of a listing call
type ListSubscriptionsRequest struct {
	SubscriptionIDs []string                   `form:"subscription_id"`
	Statuses        []types.SubscriptionStatus `form:"status"`
	PackIDs         []string                   `form:"pack_id"`
	Limit           *int                       `form:"limit"`
	Offset          *int                       `form:"offset"`
}

func (r *ListSubscriptionsRequest) Validate() error {
	for _, status := range r.Statuses {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	if r.Limit != nil && (*r.Limit < 1 || *r.Limit > types.FILTER_MAX_LIMIT) {
		return ierr.NewError("limit out of range").
			WithHintf("Limit must be between 1 and %d", types.FILTER_MAX_LIMIT).
			Mark(ierr.ErrValidation)
	}
	if r.Offset != nil && *r.Offset < 0 {
		return ierr.NewError("offset cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *ListSubscriptionsRequest) ToFilter() *types.SubscriptionFilter {
	filter := types.NewSubscriptionFilter()
	filter.SubscriptionIDs = r.SubscriptionIDs
	filter.SubscriptionStatuses = r.Statuses
	filter.PackIDs = r.PackIDs
	if r.Limit != nil {
		filter.QueryFilter.Limit = r.Limit
	}
	if r.Offset != nil {
		filter.QueryFilter.Offset = r.Offset
	}
	return filter
}

// RecordUsageRequest reports consumed service units for a subscription
type RecordUsageRequest struct {
	Units int64 `json:"units" binding:"required"`
}

func (r *RecordUsageRequest) Validate() error {
	if r.Units <= 0 {
		return ierr.NewError("units must be positive").
			WithHint("Report a positive number of consumed units").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RecordUsageResponse returns the usage counters after recording
type RecordUsageResponse struct {
	SubscriptionID string `json:"subscription_id"`
	UnitsUsed      int64  `json:"units_used"`
	UnitsIncluded  int64  `json:"units_included"`
	OverLimit      bool   `json:"over_limit"`
}

// SchedulePackChangeRequest schedules an upgrade or downgrade effective at
// the next period start
type SchedulePackChangeRequest struct {
	PackID     string                  `json:"pack_id" binding:"required"`
	ChangeType types.PendingChangeType `json:"change_type" binding:"required"`
}

func (r *SchedulePackChangeRequest) Validate() error {
	if r.PackID == "" {
		return ierr.NewError("pack_id is required").
			Mark(ierr.ErrValidation)
	}
	return r.ChangeType.Validate()
}

// AssignVendorRequest assigns a vendor to one or more subscriptions
type AssignVendorRequest struct {
	SubscriptionIDs []string             `json:"subscription_ids" binding:"required"`
	VendorID        string               `json:"vendor_id" binding:"required"`
	AssignmentType  types.AssignmentType `json:"assignment_type" binding:"required"`
}

func (r *AssignVendorRequest) Validate() error {
	if len(r.SubscriptionIDs) == 0 {
		return ierr.NewError("subscription_ids is required").
			WithHint("Provide at least one subscription to assign").
			Mark(ierr.ErrValidation)
	}
	if r.VendorID == "" {
		return ierr.NewError("vendor_id is required").
			Mark(ierr.ErrValidation)
	}
	return r.AssignmentType.Validate()
}
