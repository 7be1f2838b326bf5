package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/craftly/craftly/internal/cache"
	"github.com/craftly/craftly/internal/config"
	"github.com/craftly/craftly/internal/domain/catalog"
	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/testutil"
	"github.com/craftly/craftly/internal/types"
)

// newTestSubscription builds an active subscription one week into its
// current monthly period
func newTestSubscription(ctx context.Context, id, packID string, unitsIncluded int64) *subscription.Subscription {
	periodStart := time.Now().UTC().AddDate(0, 0, -7).Truncate(time.Second)
	return &subscription.Subscription{
		ID:                 id,
		ClientID:           "client-1",
		PackID:             packID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		IsActive:           true,
		StartDate:          periodStart,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodStart.AddDate(0, 1, 0),
		TotalUnitsIncluded: unitsIncluded,
		EnvironmentID:      testutil.TestEnvironmentID,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

func newTestPack(ctx context.Context, id, price string, unitsIncluded int64) *catalog.PricedEntity {
	base := decimal.RequireFromString(price)
	return &catalog.PricedEntity{
		ID:               id,
		Name:             "Growth Pack",
		EntityType:       types.PRICED_ENTITY_TYPE_PACK,
		PricingStructure: types.PRICING_STRUCTURE_SINGLE,
		BasePrice:        &base,
		IncludedUnits:    unitsIncluded,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
}

type SubscriptionServiceSuite struct {
	suite.Suite
	ctx         context.Context
	service     SubscriptionService
	subRepo     *testutil.InMemorySubscriptionStore
	catalogRepo *testutil.InMemoryCatalogStore
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.ctx = testutil.SetupContext()
	s.subRepo = testutil.NewInMemorySubscriptionStore()
	s.catalogRepo = testutil.NewInMemoryCatalogStore()

	serviceParams := ServiceParams{
		Logger:      logger.GetLogger(),
		Config:      config.GetDefaultConfig(),
		Cache:       cache.NewInMemoryCache(),
		SubRepo:     s.subRepo,
		CatalogRepo: s.catalogRepo,
	}
	s.service = NewSubscriptionService(serviceParams)
}

func (s *SubscriptionServiceSuite) seedSubscription(id string) *subscription.Subscription {
	sub := newTestSubscription(s.ctx, id, "pack-growth", 500)
	s.NoError(s.subRepo.Create(s.ctx, sub))
	return sub
}

func (s *SubscriptionServiceSuite) TestGet() {
	s.seedSubscription("subs-1")

	sub, err := s.service.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal("subs-1", sub.ID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestGetMissingID() {
	_, err := s.service.Get(s.ctx, "")
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestGetNotFound() {
	_, err := s.service.Get(s.ctx, "subs-missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestListByStatus() {
	s.seedSubscription("subs-1")
	pastDue := newTestSubscription(s.ctx, "subs-2", "pack-growth", 500)
	pastDue.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.NoError(s.subRepo.Create(s.ctx, pastDue))

	subs, err := s.service.List(s.ctx, &types.SubscriptionFilter{
		QueryFilter:          types.NewNoLimitQueryFilter(),
		SubscriptionStatuses: []types.SubscriptionStatus{types.SubscriptionStatusPastDue},
	})
	s.NoError(err)
	s.Len(subs, 1)
	s.Equal("subs-2", subs[0].ID)
}

func (s *SubscriptionServiceSuite) TestSchedulePackChange() {
	seeded := s.seedSubscription("subs-1")
	s.NoError(s.catalogRepo.AddPricedEntity(s.ctx, newTestPack(s.ctx, "pack-scale", "300", 2000)))

	sub, err := s.service.SchedulePackChange(s.ctx, "subs-1", "pack-scale", types.PendingChangeTypeUpgrade)
	s.NoError(err)

	// Pending fields set together; live fields untouched until renewal
	s.Equal("pack-growth", sub.PackID)
	s.NotNil(sub.PendingPackID)
	s.Equal("pack-scale", *sub.PendingPackID)
	s.NotNil(sub.PendingChangeType)
	s.Equal(types.PendingChangeTypeUpgrade, *sub.PendingChangeType)
	s.NotNil(sub.PendingEffectiveAt)
	s.True(seeded.CurrentPeriodEnd.Equal(*sub.PendingEffectiveAt))

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.True(stored.HasPendingChange())
}

func (s *SubscriptionServiceSuite) TestSchedulePackChangeUnknownPack() {
	s.seedSubscription("subs-1")

	_, err := s.service.SchedulePackChange(s.ctx, "subs-1", "pack-missing", types.PendingChangeTypeUpgrade)
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.False(stored.HasPendingChange())
}

func (s *SubscriptionServiceSuite) TestSchedulePackChangeRequiresActive() {
	sub := newTestSubscription(s.ctx, "subs-1", "pack-growth", 500)
	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.NoError(s.subRepo.Create(s.ctx, sub))
	s.NoError(s.catalogRepo.AddPricedEntity(s.ctx, newTestPack(s.ctx, "pack-scale", "300", 2000)))

	_, err := s.service.SchedulePackChange(s.ctx, "subs-1", "pack-scale", types.PendingChangeTypeUpgrade)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestCancelPendingChange() {
	s.seedSubscription("subs-1")
	s.NoError(s.catalogRepo.AddPricedEntity(s.ctx, newTestPack(s.ctx, "pack-scale", "300", 2000)))

	_, err := s.service.SchedulePackChange(s.ctx, "subs-1", "pack-scale", types.PendingChangeTypeDowngrade)
	s.NoError(err)

	sub, err := s.service.CancelPendingVendorChange(s.ctx, "subs-1")
	s.NoError(err)
	s.False(sub.HasPendingChange())
	s.Nil(sub.PendingPackID)
	s.Nil(sub.PendingChangeType)
	s.Nil(sub.PendingEffectiveAt)

	// Live state unchanged
	s.Equal("pack-growth", sub.PackID)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestCancelPendingChangeWhenNonePending() {
	s.seedSubscription("subs-1")

	_, err := s.service.CancelPendingVendorChange(s.ctx, "subs-1")
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestUnsubscribe() {
	seeded := s.seedSubscription("subs-1")

	sub, err := s.service.Unsubscribe(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceling, sub.SubscriptionStatus)
	s.NotNil(sub.UnsubscribedAt)
	s.NotNil(sub.UnsubscribeEffectiveAt)
	s.True(seeded.CurrentPeriodEnd.Equal(*sub.UnsubscribeEffectiveAt))

	// Still functioning until the effective date
	s.True(sub.IsActive)
}

func (s *SubscriptionServiceSuite) TestUnsubscribeTwice() {
	s.seedSubscription("subs-1")

	_, err := s.service.Unsubscribe(s.ctx, "subs-1")
	s.NoError(err)

	_, err = s.service.Unsubscribe(s.ctx, "subs-1")
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}
