package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/craftly/craftly/internal/cache"
	"github.com/craftly/craftly/internal/config"
	"github.com/craftly/craftly/internal/domain/billing"
	"github.com/craftly/craftly/internal/domain/catalog"
	"github.com/craftly/craftly/internal/domain/subscription"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/testutil"
	"github.com/craftly/craftly/internal/types"
)

type BillingServiceSuite struct {
	suite.Suite
	ctx            context.Context
	billingService BillingService
	cfg            *config.Configuration
	subRepo        *testutil.InMemorySubscriptionStore
	catalogRepo    *testutil.InMemoryCatalogStore
	attemptRepo    *testutil.InMemoryAttemptStore
	configRepo     *testutil.InMemoryLifecycleConfigStore
	processor      *testutil.MockPaymentProcessor
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.ctx = testutil.SetupContext()
	s.cfg = config.GetDefaultConfig()
	s.subRepo = testutil.NewInMemorySubscriptionStore()
	s.catalogRepo = testutil.NewInMemoryCatalogStore()
	s.attemptRepo = testutil.NewInMemoryAttemptStore()
	s.configRepo = testutil.NewInMemoryLifecycleConfigStore()
	s.processor = testutil.NewMockPaymentProcessor()

	serviceParams := ServiceParams{
		Logger:              logger.GetLogger(),
		Config:              s.cfg,
		Cache:               cache.NewInMemoryCache(),
		SubRepo:             s.subRepo,
		LifecycleConfigRepo: s.configRepo,
		CatalogRepo:         s.catalogRepo,
		AttemptRepo:         s.attemptRepo,
		PaymentProcessor:    s.processor,
	}
	s.billingService = NewBillingService(serviceParams)

	s.NoError(s.catalogRepo.AddPricedEntity(s.ctx, newTestPack(s.ctx, "pack-growth", "250", 500)))
	s.NoError(s.catalogRepo.AddPricedEntity(s.ctx, newTestPack(s.ctx, "pack-scale", "300", 2000)))
	s.NoError(s.catalogRepo.AddPricedEntity(s.ctx, &catalog.PricedEntity{
		ID:               "price-overage",
		Name:             "Service Unit Overage",
		EntityType:       types.PRICED_ENTITY_TYPE_SERVICE,
		PricingStructure: types.PRICING_STRUCTURE_QUANTITY_TIERED,
		Tiers: []catalog.PricingTier{
			{Label: "1+", Price: decimal.RequireFromString("0.50"), TierMode: types.TIER_MODE_PER_UNIT},
		},
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}))
	s.catalogRepo.SetOveragePrice("pack-growth", "price-overage")
}

// seedDueSubscription creates an active subscription whose billing period
// elapsed an hour ago
func (s *BillingServiceSuite) seedDueSubscription(id string, unitsUsed int64) *subscription.Subscription {
	sub := newTestSubscription(s.ctx, id, "pack-growth", 500)
	sub.CurrentPeriodEnd = time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd.AddDate(0, -1, 0)
	sub.TotalUnitsUsed = unitsUsed
	s.NoError(s.subRepo.Create(s.ctx, sub))
	return sub
}

// seedPastDueSubscription creates a past-due subscription with a grace
// window ending at the given instant
func (s *BillingServiceSuite) seedPastDueSubscription(id string, graceEnd time.Time) *subscription.Subscription {
	sub := newTestSubscription(s.ctx, id, "pack-growth", 500)
	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	failedAt := graceEnd.AddDate(0, 0, -s.cfg.Billing.GracePeriodDays)
	sub.PaymentFailedAt = &failedAt
	sub.GracePeriodEnd = &graceEnd
	s.NoError(s.subRepo.Create(s.ctx, sub))
	return sub
}

func (s *BillingServiceSuite) seedAttempt(sub *subscription.Subscription, runType types.BillingRunType, periodStart time.Time, success bool) {
	s.NoError(s.attemptRepo.Create(s.ctx, &billing.Attempt{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_ATTEMPT),
		IdempotencyKey: types.GenerateUUIDWithPrefix("key"),
		SubscriptionID: sub.ID,
		RunType:        runType,
		PeriodStart:    periodStart,
		Amount:         decimal.RequireFromString("250"),
		Success:        success,
		CreatedAt:      time.Now().UTC(),
		TenantID:       sub.TenantID,
		EnvironmentID:  sub.EnvironmentID,
	}))
}

func (s *BillingServiceSuite) TestRenewalSuccess() {
	seeded := s.seedDueSubscription("subs-1", 300)
	oldPeriodEnd := seeded.CurrentPeriodEnd

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, result.SuccessCount)
	s.Equal(0, result.FailedCount)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.True(oldPeriodEnd.Equal(stored.CurrentPeriodStart))
	s.True(oldPeriodEnd.AddDate(0, 1, 0).Equal(stored.CurrentPeriodEnd))
	s.Equal(int64(0), stored.TotalUnitsUsed)
	s.Equal(int64(500), stored.TotalUnitsIncluded)

	calls := s.processor.Calls()
	s.Len(calls, 1)
	s.True(decimal.RequireFromString("250").Equal(calls[0].Amount))

	attempts := s.attemptRepo.Attempts()
	s.Len(attempts, 1)
	s.True(attempts[0].Success)
	s.Equal(types.BillingRunTypeMonthlyRenewal, attempts[0].RunType)
	s.True(oldPeriodEnd.Equal(attempts[0].PeriodStart))
}

func (s *BillingServiceSuite) TestRenewalNotDue() {
	sub := newTestSubscription(s.ctx, "subs-1", "pack-growth", 500)
	s.NoError(s.subRepo.Create(s.ctx, sub))

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(0, result.SuccessCount)
	s.Equal(0, result.FailedCount)
	s.Zero(s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestRenewalChargeDeclined() {
	seeded := s.seedDueSubscription("subs-1", 300)
	oldPeriodEnd := seeded.CurrentPeriodEnd
	s.processor.ScriptDecline("subs-1", "insufficient funds")

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(0, result.SuccessCount)
	s.Equal(1, result.FailedCount)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)
	s.NotNil(stored.PaymentFailedAt)
	s.NotNil(stored.GracePeriodEnd)
	s.Equal(types.SubscriptionStatusGracePeriod, stored.DisplayStatus(time.Now().UTC()))

	// The new period starts even though the charge failed; the subscription
	// keeps functioning through the grace window
	s.True(oldPeriodEnd.Equal(stored.CurrentPeriodStart))
	s.Equal(int64(0), stored.TotalUnitsUsed)

	attempts := s.attemptRepo.Attempts()
	s.Len(attempts, 1)
	s.False(attempts[0].Success)
	s.Equal("insufficient funds", attempts[0].FailureReason)
}

func (s *BillingServiceSuite) TestRenewalTransportError() {
	s.seedDueSubscription("subs-1", 0)
	s.processor.ScriptError("subs-1", errors.New("connection reset"))

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, result.FailedCount)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)
}

func (s *BillingServiceSuite) TestRenewalAlreadyCharged() {
	seeded := s.seedDueSubscription("subs-1", 300)
	s.seedAttempt(seeded, types.BillingRunTypeMonthlyRenewal, seeded.CurrentPeriodEnd, true)

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, result.SuccessCount)
	s.Equal(0, result.FailedCount)

	// No second charge; the period still advances so state converges
	s.Zero(s.processor.ChargeCount("subs-1"))
	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.True(seeded.CurrentPeriodEnd.Equal(stored.CurrentPeriodStart))
	s.Equal(int64(0), stored.TotalUnitsUsed)
}

func (s *BillingServiceSuite) TestRenewalFinalizesDueCancellation() {
	sub := s.seedDueSubscription("subs-1", 100)
	stored, err := s.subRepo.Get(s.ctx, sub.ID)
	s.NoError(err)
	requestedAt := stored.CurrentPeriodStart.AddDate(0, 0, 3)
	stored.SubscriptionStatus = types.SubscriptionStatusCanceling
	stored.UnsubscribedAt = &requestedAt
	stored.UnsubscribeEffectiveAt = &stored.CurrentPeriodEnd
	s.NoError(s.subRepo.Update(s.ctx, stored))

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, result.SuccessCount)

	final, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, final.SubscriptionStatus)
	s.False(final.IsActive)
	s.NotNil(final.EndDate)
	s.Zero(s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestRenewalAppliesPendingUpgrade() {
	sub := s.seedDueSubscription("subs-1", 450)
	stored, err := s.subRepo.Get(s.ctx, sub.ID)
	s.NoError(err)
	stored.SchedulePackChange("pack-scale", types.PendingChangeTypeUpgrade, stored.CurrentPeriodEnd)
	s.NoError(s.subRepo.Update(s.ctx, stored))

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, result.SuccessCount)

	final, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal("pack-scale", final.PackID)
	s.False(final.HasPendingChange())
	s.Equal(int64(2000), final.TotalUnitsIncluded)
	s.Equal(int64(0), final.TotalUnitsUsed)

	// Charged at the new pack's price
	calls := s.processor.Calls()
	s.Len(calls, 1)
	s.True(decimal.RequireFromString("300").Equal(calls[0].Amount))
}

func (s *BillingServiceSuite) TestRenewalAppliesPendingCancel() {
	sub := s.seedDueSubscription("subs-1", 100)
	stored, err := s.subRepo.Get(s.ctx, sub.ID)
	s.NoError(err)
	stored.SchedulePackChange(stored.PackID, types.PendingChangeTypeCancel, stored.CurrentPeriodEnd)
	s.NoError(s.subRepo.Update(s.ctx, stored))

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, result.SuccessCount)

	final, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, final.SubscriptionStatus)
	s.Zero(s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestRenewalIsolatesPerSubscriptionFailures() {
	s.seedDueSubscription("subs-1", 0)
	s.seedDueSubscription("subs-2", 0)
	s.seedDueSubscription("subs-3", 0)
	s.processor.ScriptDecline("subs-2", "card expired")

	result, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(2, result.SuccessCount)
	s.Equal(1, result.FailedCount)

	for _, tc := range []struct {
		id     string
		status types.SubscriptionStatus
	}{
		{"subs-1", types.SubscriptionStatusActive},
		{"subs-2", types.SubscriptionStatusPastDue},
		{"subs-3", types.SubscriptionStatusActive},
	} {
		stored, err := s.subRepo.Get(s.ctx, tc.id)
		s.NoError(err)
		s.Equal(tc.status, stored.SubscriptionStatus, tc.id)
	}
}

func (s *BillingServiceSuite) TestOverageCharged() {
	sub := newTestSubscription(s.ctx, "subs-1", "pack-growth", 500)
	sub.TotalUnitsUsed = 600
	s.NoError(s.subRepo.Create(s.ctx, sub))

	result, err := s.billingService.ProcessPackExceeded(s.ctx)
	s.NoError(err)
	s.Equal(1, result.SuccessCount)

	// 100 overage units at 0.50
	calls := s.processor.Calls()
	s.Len(calls, 1)
	s.True(decimal.RequireFromString("50.00").Equal(calls[0].Amount), "got %s", calls[0].Amount)

	attempts := s.attemptRepo.Attempts()
	s.Len(attempts, 1)
	s.Equal(types.BillingRunTypePackExceeded, attempts[0].RunType)
	s.True(sub.CurrentPeriodStart.Equal(attempts[0].PeriodStart))

	// Usage and period are untouched by an overage charge
	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(int64(600), stored.TotalUnitsUsed)
	s.True(sub.CurrentPeriodStart.Equal(stored.CurrentPeriodStart))
}

func (s *BillingServiceSuite) TestOverageFailureNeverBlocksService() {
	sub := newTestSubscription(s.ctx, "subs-1", "pack-growth", 500)
	sub.TotalUnitsUsed = 600
	s.NoError(s.subRepo.Create(s.ctx, sub))
	s.processor.ScriptDecline("subs-1", "insufficient funds")

	result, err := s.billingService.ProcessPackExceeded(s.ctx)
	s.NoError(err)
	s.Equal(1, result.FailedCount)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.Nil(stored.GracePeriodEnd)
	s.Nil(stored.PaymentFailedAt)
}

func (s *BillingServiceSuite) TestOverageChargedOncePerPeriod() {
	sub := newTestSubscription(s.ctx, "subs-1", "pack-growth", 500)
	sub.TotalUnitsUsed = 600
	s.NoError(s.subRepo.Create(s.ctx, sub))
	s.seedAttempt(sub, types.BillingRunTypePackExceeded, sub.CurrentPeriodStart, true)

	result, err := s.billingService.ProcessPackExceeded(s.ctx)
	s.NoError(err)
	s.Equal(1, result.SuccessCount)
	s.Equal(0, result.FailedCount)
	s.Zero(s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestOverageSkipsWithinQuota() {
	sub := newTestSubscription(s.ctx, "subs-1", "pack-growth", 500)
	sub.TotalUnitsUsed = 499
	s.NoError(s.subRepo.Create(s.ctx, sub))

	result, err := s.billingService.ProcessPackExceeded(s.ctx)
	s.NoError(err)
	s.Equal(0, result.SuccessCount)
	s.Equal(0, result.FailedCount)
	s.Zero(s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestRetrySuccessRestoresActive() {
	graceEnd := time.Now().UTC().AddDate(0, 0, 3)
	s.seedPastDueSubscription("subs-1", graceEnd)

	result, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(1, result.Succeeded)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.Nil(stored.PaymentFailedAt)
	s.Nil(stored.GracePeriodEnd)

	attempts := s.attemptRepo.Attempts()
	s.Len(attempts, 1)
	s.Equal(types.BillingRunTypeRetry, attempts[0].RunType)
	s.True(attempts[0].Success)
}

func (s *BillingServiceSuite) TestRetryFailureKeepsPastDue() {
	graceEnd := time.Now().UTC().AddDate(0, 0, 3)
	s.seedPastDueSubscription("subs-1", graceEnd)
	s.processor.ScriptDecline("subs-1", "insufficient funds")

	result, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, result.Failed)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)
	s.NotNil(stored.GracePeriodEnd)
}

func (s *BillingServiceSuite) TestRetryCeiling() {
	s.cfg.Billing.MaxRetryAttempts = 2
	graceEnd := time.Now().UTC().AddDate(0, 0, 3)
	sub := s.seedPastDueSubscription("subs-1", graceEnd)
	s.seedAttempt(sub, types.BillingRunTypeRetry, sub.CurrentPeriodStart, false)
	s.seedAttempt(sub, types.BillingRunTypeRetry, sub.CurrentPeriodStart, false)

	result, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(0, result.Succeeded)
	s.Equal(0, result.Failed)
	s.Zero(s.processor.ChargeCount("subs-1"))

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)
}

func (s *BillingServiceSuite) TestRetryGraceExpired() {
	graceEnd := time.Now().UTC().AddDate(0, 0, -1)
	s.seedPastDueSubscription("subs-1", graceEnd)

	result, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, result.Failed)
	s.Zero(s.processor.ChargeCount("subs-1"))

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, stored.SubscriptionStatus)
	s.False(stored.IsActive)
	s.NotNil(stored.EndDate)
}

func (s *BillingServiceSuite) TestFailureThenRetryRoundtrip() {
	s.seedDueSubscription("subs-1", 0)
	s.processor.ScriptDecline("subs-1", "insufficient funds")

	renewal, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, renewal.FailedCount)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)

	// The scripted decline is consumed; the retry pass collects the money
	retry, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, retry.Succeeded)

	stored, err = s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.Nil(stored.GracePeriodEnd)
	s.Equal(2, s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestRunMonthlyRenewsBeforeOverage() {
	// Over limit and due for renewal at once: the renewal resets usage, so
	// the pack-exceeded pass that follows must not charge overage
	s.seedDueSubscription("subs-1", 600)

	renewal, overage, err := s.billingService.RunMonthly(s.ctx)
	s.NoError(err)
	s.Equal(1, renewal.SuccessCount)
	s.Equal(0, overage.SuccessCount)
	s.Equal(0, overage.FailedCount)
	s.Equal(1, s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestRenewalIdempotencyKeyVariesByPeriod() {
	// Same subscription, same pack price, two consecutive billing months:
	// the processor must see two distinct idempotency keys or a deduping
	// processor would replay month one's charge and never collect month two
	s.seedDueSubscription("subs-1", 0)

	_, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)

	// Wind the renewed subscription back to due so the next month's pass
	// picks it up again; the new period end must not coincide with the
	// seeded one
	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	stored.CurrentPeriodEnd = time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	stored.CurrentPeriodStart = stored.CurrentPeriodEnd.AddDate(0, -1, 0)
	s.NoError(s.subRepo.Update(s.ctx, stored))

	_, err = s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)

	calls := s.processor.Calls()
	s.Len(calls, 2)
	s.NotEmpty(calls[0].IdempotencyKey)
	s.NotEmpty(calls[1].IdempotencyKey)
	s.NotEqual(calls[0].IdempotencyKey, calls[1].IdempotencyKey)
}

func (s *BillingServiceSuite) TestRetryIdempotencyKeyVariesByAttempt() {
	// Each retry must reach the processor as a fresh request; reusing the
	// first retry's key would replay its decline forever
	graceEnd := time.Now().UTC().AddDate(0, 0, 3)
	s.seedPastDueSubscription("subs-1", graceEnd)
	s.processor.ScriptDecline("subs-1", "insufficient funds")
	s.processor.ScriptDecline("subs-1", "insufficient funds")

	_, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	_, err = s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)

	calls := s.processor.Calls()
	s.Len(calls, 2)
	s.NotEmpty(calls[0].IdempotencyKey)
	s.NotEqual(calls[0].IdempotencyKey, calls[1].IdempotencyKey)
}

func (s *BillingServiceSuite) TestRetrySkipsPermanentDecline() {
	graceEnd := time.Now().UTC().AddDate(0, 0, 3)
	s.seedPastDueSubscription("subs-1", graceEnd)
	s.processor.ScriptPermanentDecline("subs-1", "card expired")

	result, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, result.Failed)

	attempts := s.attemptRepo.Attempts()
	s.Len(attempts, 1)
	s.True(attempts[0].Permanent)

	// The decline cannot succeed on retry; further passes sit the
	// subscription out and leave it to the grace expiry
	result, err = s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(0, result.Succeeded)
	s.Equal(0, result.Failed)
	s.Equal(1, s.processor.ChargeCount("subs-1"))

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)
}

func (s *BillingServiceSuite) TestRenewalPermanentDeclineBlocksRetry() {
	// A permanent decline during renewal blocks the retry pass for the
	// period even though the attempt's run type differs
	s.seedDueSubscription("subs-1", 0)
	s.processor.ScriptPermanentDecline("subs-1", "account closed")

	renewal, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)
	s.Equal(1, renewal.FailedCount)

	retry, err := s.billingService.ProcessRetries(s.ctx)
	s.NoError(err)
	s.Equal(1, retry.Processed)
	s.Equal(0, retry.Succeeded)
	s.Equal(0, retry.Failed)
	s.Equal(1, s.processor.ChargeCount("subs-1"))
}

func (s *BillingServiceSuite) TestTenantGracePeriodOverride() {
	// Tenant-scoped grace window of 14 days overrides the process default
	svc := NewLifecycleConfigService(ServiceParams{
		Logger:              logger.GetLogger(),
		Config:              s.cfg,
		Cache:               cache.NewInMemoryCache(),
		LifecycleConfigRepo: s.configRepo,
	})
	s.NoError(svc.SetGracePeriodDays(s.ctx, testutil.TestTenantID, testutil.TestEnvironmentID, 14, testutil.TestUserID))

	s.seedDueSubscription("subs-1", 0)
	s.processor.ScriptDecline("subs-1", "insufficient funds")

	before := time.Now().UTC()
	_, err := s.billingService.ProcessMonthlyRenewals(s.ctx)
	s.NoError(err)

	stored, err := s.subRepo.Get(s.ctx, "subs-1")
	s.NoError(err)
	s.NotNil(stored.GracePeriodEnd)
	expected := before.AddDate(0, 0, 14)
	s.WithinDuration(expected, *stored.GracePeriodEnd, time.Minute)
}
