package types

import ierr "github.com/craftly/craftly/internal/errors"

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"

	// SubscriptionStatusPastDue marks a subscription whose renewal charge
	// failed. The grace window starts at the same moment; a subscription in
	// the grace window stays past_due with grace_period_end in the future.
	SubscriptionStatusPastDue SubscriptionStatus = "past_due"

	// SubscriptionStatusGracePeriod is a display status derived from
	// past_due with an unexpired grace window. It is never persisted.
	SubscriptionStatusGracePeriod SubscriptionStatus = "grace_period"

	// SubscriptionStatusCanceling marks a subscription whose cancellation
	// was requested; it keeps functioning until the effective date.
	SubscriptionStatusCanceling SubscriptionStatus = "canceling"

	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) Validate() error {
	switch s {
	case SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusGracePeriod,
		SubscriptionStatusCanceling,
		SubscriptionStatusCanceled:
		return nil
	default:
		return ierr.NewError("invalid subscription status").
			WithHint("Subscription status must be one of: active, past_due, grace_period, canceling, canceled").
			Mark(ierr.ErrValidation)
	}
}

// PaymentStatus mirrors the status reported by the external payment processor
type PaymentStatus string

const (
	PaymentStatusActive   PaymentStatus = "active"
	PaymentStatusPastDue  PaymentStatus = "past_due"
	PaymentStatusCanceled PaymentStatus = "canceled"
	PaymentStatusTrialing PaymentStatus = "trialing"
)

// PendingChangeType identifies the direction of a scheduled pack change
type PendingChangeType string

const (
	PendingChangeTypeUpgrade   PendingChangeType = "upgrade"
	PendingChangeTypeDowngrade PendingChangeType = "downgrade"
	PendingChangeTypeCancel    PendingChangeType = "cancel"
)

func (p PendingChangeType) Validate() error {
	switch p {
	case PendingChangeTypeUpgrade, PendingChangeTypeDowngrade, PendingChangeTypeCancel:
		return nil
	default:
		return ierr.NewError("invalid pending change type").
			WithHint("Pending change type must be one of: upgrade, downgrade, cancel").
			Mark(ierr.ErrValidation)
	}
}

// AssignmentType controls when a vendor or pack assignment takes effect
type AssignmentType string

const (
	// AssignmentTypeImmediate writes the live field right away
	AssignmentTypeImmediate AssignmentType = "immediate"

	// AssignmentTypeScheduled writes pending fields that take effect at the
	// start of the next billing period
	AssignmentTypeScheduled AssignmentType = "scheduled"
)

func (a AssignmentType) Validate() error {
	switch a {
	case AssignmentTypeImmediate, AssignmentTypeScheduled:
		return nil
	default:
		return ierr.NewError("invalid assignment type").
			WithHint("Assignment type must be one of: immediate, scheduled").
			Mark(ierr.ErrValidation)
	}
}
