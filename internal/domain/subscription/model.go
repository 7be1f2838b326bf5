package subscription

import (
	"time"

	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// Subscription represents one client's commitment to a pack. It is the
// single source of truth for lifecycle state; the billing scheduler and the
// admin surface both mutate it through the repository, which enforces
// optimistic concurrency via Version.
type Subscription struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	PackID   string `json:"pack_id"`

	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status"`
	IsActive           bool                     `json:"is_active"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Current billing period bounds; renewal advances them by one month
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`

	// External payment processor linkage
	PaymentReference *string              `json:"payment_reference,omitempty"`
	PaymentStatus    *types.PaymentStatus `json:"payment_status,omitempty"`

	// Failure and grace window bookkeeping
	PaymentFailedAt *time.Time `json:"payment_failed_at,omitempty"`
	GracePeriodEnd  *time.Time `json:"grace_period_end,omitempty"`

	// Vendor assignment
	VendorAssigneeID *string `json:"vendor_assignee_id,omitempty"`

	// Pending change fields; set together, cleared together
	PendingVendorAssigneeID *string                  `json:"pending_vendor_assignee_id,omitempty"`
	PendingPackID           *string                  `json:"pending_pack_id,omitempty"`
	PendingChangeType       *types.PendingChangeType `json:"pending_change_type,omitempty"`
	PendingEffectiveAt      *time.Time               `json:"pending_effective_at,omitempty"`

	// Cancellation bookkeeping
	UnsubscribedAt         *time.Time `json:"unsubscribed_at,omitempty"`
	UnsubscribeEffectiveAt *time.Time `json:"unsubscribe_effective_at,omitempty"`

	// Usage quota for the current period
	TotalUnitsIncluded int64 `json:"total_units_included"`
	TotalUnitsUsed     int64 `json:"total_units_used"`

	// Version increments on every update; stale writers get a conflict
	Version int64 `json:"version"`

	EnvironmentID string `json:"environment_id"`
	types.BaseModel
}

// HasPendingChange reports whether a vendor or pack change is scheduled
func (s *Subscription) HasPendingChange() bool {
	return s.PendingEffectiveAt != nil &&
		(s.PendingVendorAssigneeID != nil || s.PendingPackID != nil)
}

// IsOverLimit reports whether usage exceeded the included quota
func (s *Subscription) IsOverLimit() bool {
	return s.TotalUnitsUsed > s.TotalUnitsIncluded
}

// OverageUnits returns the units consumed beyond the included quota
func (s *Subscription) OverageUnits() int64 {
	if !s.IsOverLimit() {
		return 0
	}
	return s.TotalUnitsUsed - s.TotalUnitsIncluded
}

// RenewalDue reports whether the current billing period has elapsed
func (s *Subscription) RenewalDue(now time.Time) bool {
	return !s.CurrentPeriodEnd.After(now)
}

// InGracePeriod reports whether the subscription is past due with an
// unexpired grace window
func (s *Subscription) InGracePeriod(now time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusPastDue &&
		s.GracePeriodEnd != nil && now.Before(*s.GracePeriodEnd)
}

// GraceExpired reports whether the grace window elapsed without recovery
func (s *Subscription) GraceExpired(now time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusPastDue &&
		s.GracePeriodEnd != nil && !now.Before(*s.GracePeriodEnd)
}

// DisplayStatus maps the persisted status to the badge shown to admins;
// past_due with an unexpired grace window surfaces as grace_period
func (s *Subscription) DisplayStatus(now time.Time) types.SubscriptionStatus {
	if s.InGracePeriod(now) {
		return types.SubscriptionStatusGracePeriod
	}
	return s.SubscriptionStatus
}

// CancellationDue reports whether the requested cancellation should be
// finalized
func (s *Subscription) CancellationDue(now time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusCanceling &&
		s.UnsubscribeEffectiveAt != nil && !now.Before(*s.UnsubscribeEffectiveAt)
}

// MarkChargeFailed transitions the subscription to past_due and opens the
// grace window in the same step
func (s *Subscription) MarkChargeFailed(now time.Time, graceDays int) error {
	if s.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return ierr.NewError("cannot mark a canceled subscription past due").
			WithHint("Canceled subscriptions are no longer charged").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	graceEnd := now.AddDate(0, 0, graceDays)
	s.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.PaymentFailedAt = &now
	s.GracePeriodEnd = &graceEnd
	s.PaymentStatus = paymentStatusPtr(types.PaymentStatusPastDue)
	return nil
}

// RestoreActive clears the failure bookkeeping after a successful charge
func (s *Subscription) RestoreActive() error {
	switch s.SubscriptionStatus {
	case types.SubscriptionStatusActive, types.SubscriptionStatusPastDue:
	default:
		return ierr.NewErrorf("cannot restore subscription in status %s", s.SubscriptionStatus).
			WithHint("Only active or past-due subscriptions can be restored").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
				"status":          s.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	s.SubscriptionStatus = types.SubscriptionStatusActive
	s.IsActive = true
	s.PaymentFailedAt = nil
	s.GracePeriodEnd = nil
	s.PaymentStatus = paymentStatusPtr(types.PaymentStatusActive)
	return nil
}

// AssignVendorNow writes the live vendor field without touching pending state
func (s *Subscription) AssignVendorNow(vendorID string) {
	s.VendorAssigneeID = &vendorID
}

// ScheduleVendorChange records a vendor change that takes effect at the
// start of the next billing period
func (s *Subscription) ScheduleVendorChange(vendorID string, effectiveAt time.Time) {
	s.PendingVendorAssigneeID = &vendorID
	s.PendingEffectiveAt = &effectiveAt
}

// SchedulePackChange records a pack change that takes effect at the start of
// the next billing period
func (s *Subscription) SchedulePackChange(packID string, changeType types.PendingChangeType, effectiveAt time.Time) {
	s.PendingPackID = &packID
	s.PendingChangeType = &changeType
	s.PendingEffectiveAt = &effectiveAt
}

// ApplyPendingChange copies the pending fields into the live fields and
// clears all pending fields together. It fails when no change is pending or
// the effective date has not arrived.
func (s *Subscription) ApplyPendingChange(now time.Time) error {
	if !s.HasPendingChange() {
		return ierr.NewError("no pending change to apply").
			WithHint("Subscription has no scheduled vendor or pack change").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if now.Before(*s.PendingEffectiveAt) {
		return ierr.NewError("pending change is not yet effective").
			WithHintf("Change takes effect at %s", s.PendingEffectiveAt.Format(time.RFC3339)).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
				"effective_at":    s.PendingEffectiveAt,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if s.PendingVendorAssigneeID != nil {
		s.VendorAssigneeID = s.PendingVendorAssigneeID
	}
	if s.PendingPackID != nil {
		s.PackID = *s.PendingPackID
	}

	s.clearPendingFields()
	return nil
}

// CancelPendingChange clears the pending fields without altering live state
func (s *Subscription) CancelPendingChange() error {
	if !s.HasPendingChange() {
		return ierr.NewError("no pending change to cancel").
			WithHint("Subscription has no scheduled vendor or pack change").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	s.clearPendingFields()
	return nil
}

// RequestCancellation soft-cancels the subscription; it keeps functioning
// until the end of the paid period
func (s *Subscription) RequestCancellation(now time.Time) error {
	switch s.SubscriptionStatus {
	case types.SubscriptionStatusCanceled:
		return ierr.NewError("subscription is already canceled").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	case types.SubscriptionStatusCanceling:
		return ierr.NewError("cancellation already requested").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	effectiveAt := s.CurrentPeriodEnd
	s.SubscriptionStatus = types.SubscriptionStatusCanceling
	s.UnsubscribedAt = &now
	s.UnsubscribeEffectiveAt = &effectiveAt
	return nil
}

// FinalizeCancellation terminates the subscription once the effective date
// has passed; no further charges are attempted
func (s *Subscription) FinalizeCancellation(now time.Time) {
	s.SubscriptionStatus = types.SubscriptionStatusCanceled
	s.IsActive = false
	s.EndDate = &now
	s.PaymentStatus = paymentStatusPtr(types.PaymentStatusCanceled)
	s.GracePeriodEnd = nil
	s.PaymentFailedAt = nil
}

// AdvancePeriod moves the subscription into its next billing period and
// resets usage. Included units change only when the pack changed.
func (s *Subscription) AdvancePeriod(unitsIncluded int64) {
	s.CurrentPeriodStart = s.CurrentPeriodEnd
	s.CurrentPeriodEnd = s.CurrentPeriodEnd.AddDate(0, 1, 0)
	s.TotalUnitsIncluded = unitsIncluded
	s.TotalUnitsUsed = 0
}

// RecordUsage increments consumed units and returns the new total. Usage is
// never clamped to the included quota; overage is detected by the caller.
func (s *Subscription) RecordUsage(units int64) (int64, error) {
	if units <= 0 {
		return 0, ierr.NewError("usage units must be positive").
			WithHint("Provide a positive number of consumed units").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": s.ID,
				"units":           units,
			}).
			Mark(ierr.ErrValidation)
	}
	s.TotalUnitsUsed += units
	return s.TotalUnitsUsed, nil
}

func (s *Subscription) clearPendingFields() {
	s.PendingVendorAssigneeID = nil
	s.PendingPackID = nil
	s.PendingChangeType = nil
	s.PendingEffectiveAt = nil
}

// Validate checks the structural invariants of the record
func (s *Subscription) Validate() error {
	if s.ClientID == "" {
		return ierr.NewError("client_id is required").Mark(ierr.ErrValidation)
	}
	if s.PackID == "" {
		return ierr.NewError("pack_id is required").Mark(ierr.ErrValidation)
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if s.PendingPackID != nil && (s.PendingChangeType == nil || s.PendingEffectiveAt == nil) {
		return ierr.NewError("pending pack change is incomplete").
			WithHint("A pending pack change requires a change type and an effective date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func paymentStatusPtr(status types.PaymentStatus) *types.PaymentStatus {
	return &status
}
