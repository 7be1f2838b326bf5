package types

import (
	"time"

	"github.com/samber/lo"
)

const (
	FILTER_DEFAULT_LIMIT = 50
	FILTER_MAX_LIMIT     = 1000
)

// QueryFilter contains pagination parameters shared by list queries
type QueryFilter struct {
	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`
}

func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FILTER_DEFAULT_LIMIT),
		Offset: lo.ToPtr(0),
	}
}

// NewNoLimitQueryFilter returns a filter that does not restrict result size,
// used by scheduler passes that must see every due subscription
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Offset: lo.ToPtr(0),
	}
}

func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return 0
	}
	return *f.Limit
}

func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

// SubscriptionFilter defines query parameters for listing subscriptions
type SubscriptionFilter struct {
	QueryFilter *QueryFilter

	// SubscriptionIDs restricts to specific subscriptions
	SubscriptionIDs []string

	// SubscriptionStatuses restricts to specific lifecycle statuses
	SubscriptionStatuses []SubscriptionStatus

	// PackIDs restricts to subscriptions of specific packs
	PackIDs []string

	// PeriodEndBefore selects subscriptions whose current billing period has
	// elapsed as of the given instant
	PeriodEndBefore *time.Time

	// OverLimitOnly selects subscriptions whose used units exceed the units
	// included in their pack
	OverLimitOnly bool
}

func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}
