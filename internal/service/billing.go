package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/craftly/craftly/internal/domain/billing"
	"github.com/craftly/craftly/internal/domain/payment"
	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/idempotency"
	"github.com/craftly/craftly/internal/types"
)

// RenewalRunResult aggregates one monthly renewal or pack-exceeded pass
type RenewalRunResult struct {
	RunID        string `json:"run_id"`
	SuccessCount int    `json:"success_count"`
	FailedCount  int    `json:"failed_count"`
}

// RetryRunResult aggregates one retry pass
type RetryRunResult struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// BillingService drives the time-triggered billing passes. Subscriptions
// within a pass are processed concurrently by a bounded worker pool; every
// per-subscription failure is isolated and aggregated, never allowed to
// abort the batch.
type BillingService interface {
	// ProcessMonthlyRenewals charges every active subscription whose
	// current period has elapsed, applying pending changes and resetting
	// usage as part of the renewal transition
	ProcessMonthlyRenewals(ctx context.Context) (*RenewalRunResult, error)

	// ProcessPackExceeded charges overage for subscriptions that consumed
	// more units than their pack includes. Overage failure is reported but
	// never moves a subscription to past_due.
	ProcessPackExceeded(ctx context.Context) (*RenewalRunResult, error)

	// ProcessRetries re-attempts the failed renewal charge for past-due
	// subscriptions and cancels those whose grace window expired
	ProcessRetries(ctx context.Context) (*RetryRunResult, error)

	// RunMonthly executes the renewal pass and then the pack-exceeded pass;
	// the ordering is required so overage is evaluated against the new
	// period
	RunMonthly(ctx context.Context) (*RenewalRunResult, *RenewalRunResult, error)
}

type billingService struct {
	ServiceParams
	priceService    PriceService
	lifecycleConfig *LifecycleConfigService
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams:   params,
		priceService:    NewPriceService(params),
		lifecycleConfig: NewLifecycleConfigService(params),
	}
}

func (s *billingService) RunMonthly(ctx context.Context) (*RenewalRunResult, *RenewalRunResult, error) {
	renewal, err := s.ProcessMonthlyRenewals(ctx)
	if err != nil {
		return nil, nil, err
	}

	overage, err := s.ProcessPackExceeded(ctx)
	if err != nil {
		return renewal, nil, err
	}

	return renewal, overage, nil
}

func (s *billingService) ProcessMonthlyRenewals(ctx context.Context) (*RenewalRunResult, error) {
	now := time.Now().UTC()
	run := s.newRun(types.BillingRunTypeMonthlyRenewal, now)

	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		SubscriptionStatuses: []types.SubscriptionStatus{
			types.SubscriptionStatusActive,
			types.SubscriptionStatusCanceling,
		},
		PeriodEndBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("starting monthly renewal pass",
		"run_id", run.ID,
		"due_subscriptions", len(subs))

	run.Outcomes = s.forEachSubscription(subs, func(sub *subscription.Subscription) billing.SubscriptionOutcome {
		return s.processRenewal(ctx, sub, now)
	})
	run.CompletedAt = time.Now().UTC()

	result := &RenewalRunResult{
		RunID:        run.ID,
		SuccessCount: run.SuccessCount(),
		FailedCount:  run.FailedCount(),
	}

	s.Logger.Infow("completed monthly renewal pass",
		"run_id", run.ID,
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount)

	return result, nil
}

func (s *billingService) processRenewal(ctx context.Context, sub *subscription.Subscription, now time.Time) billing.SubscriptionOutcome {
	log := s.Logger.With("subscription_id", sub.ID, "run_type", types.BillingRunTypeMonthlyRenewal)

	// A requested cancellation whose effective date passed is finalized
	// without charging
	if sub.CancellationDue(now) {
		sub.FinalizeCancellation(now)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return failedOutcome(sub.ID, err)
		}
		log.Infow("finalized cancellation, skipping charge")
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true, Reason: "cancellation finalized"}
	}

	// Apply a pending vendor/pack change atomically with the renewal
	if sub.HasPendingChange() && !now.Before(*sub.PendingEffectiveAt) {
		if sub.PendingChangeType != nil && *sub.PendingChangeType == types.PendingChangeTypeCancel {
			sub.FinalizeCancellation(now)
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return failedOutcome(sub.ID, err)
			}
			log.Infow("applied pending cancellation, skipping charge")
			return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true, Reason: "pending cancellation applied"}
		}
		if err := sub.ApplyPendingChange(now); err != nil {
			return failedOutcome(sub.ID, err)
		}
		log.Infow("applied pending change", "pack_id", sub.PackID, "vendor_id", sub.VendorAssigneeID)
	}

	// The period the subscription is renewing into
	newPeriodStart := sub.CurrentPeriodEnd

	pack, err := s.CatalogRepo.GetPricedEntity(ctx, sub.PackID)
	if err != nil {
		log.Errorw("failed to load pack for renewal", "pack_id", sub.PackID, "error", err)
		return failedOutcome(sub.ID, err)
	}

	// Idempotency gate: a successful renewal charge for this period means a
	// previous run already collected the money. The period still advances so
	// a run that crashed between charging and updating converges on re-run.
	charged, err := s.AttemptRepo.HasSuccessful(ctx, sub.ID, types.BillingRunTypeMonthlyRenewal, newPeriodStart)
	if err != nil {
		return failedOutcome(sub.ID, err)
	}
	if charged {
		sub.AdvancePeriod(pack.IncludedUnits)
		if err := sub.RestoreActive(); err != nil {
			return failedOutcome(sub.ID, err)
		}
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return failedOutcome(sub.ID, err)
		}
		log.Infow("renewal already charged for period", "period_start", newPeriodStart)
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true, Skipped: true, Reason: "already charged"}
	}

	amount, err := s.priceService.ResolvePrice(ctx, pack, PriceContext{})
	if err != nil {
		// Configuration error: skip this subscription's charge for the
		// period, reported as failed
		log.Errorw("failed to resolve renewal price", "pack_id", pack.ID, "error", err)
		return failedOutcome(sub.ID, err)
	}

	result, chargeErr := s.charge(ctx, sub.ID, amount,
		attemptIdempotencyKey(sub.ID, types.BillingRunTypeMonthlyRenewal, newPeriodStart))
	success := chargeErr == nil && result.Success

	s.recordAttempt(ctx, sub, types.BillingRunTypeMonthlyRenewal, newPeriodStart, amount, success, chargeErr, result)

	// The new period begins regardless of the charge outcome: on failure the
	// subscription keeps functioning through the grace window and the retry
	// pass re-attempts the charge
	sub.AdvancePeriod(pack.IncludedUnits)

	if success {
		if err := sub.RestoreActive(); err != nil {
			return failedOutcome(sub.ID, err)
		}
		if result.ExternalStatus != "" {
			sub.PaymentStatus = &result.ExternalStatus
		}
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return failedOutcome(sub.ID, err)
		}
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true}
	}

	graceDays, err := s.lifecycleConfig.GetGracePeriodDays(ctx, sub.TenantID, sub.EnvironmentID)
	if err != nil {
		graceDays = s.Config.Billing.GracePeriodDays
	}
	if err := sub.MarkChargeFailed(now, graceDays); err != nil {
		return failedOutcome(sub.ID, err)
	}
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return failedOutcome(sub.ID, err)
	}

	reason := chargeReason(chargeErr, result)
	log.Warnw("renewal charge failed, subscription past due",
		"amount", amount,
		"grace_period_end", sub.GracePeriodEnd,
		"reason", reason)

	return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: false, Reason: reason}
}

func (s *billingService) ProcessPackExceeded(ctx context.Context) (*RenewalRunResult, error) {
	now := time.Now().UTC()
	run := s.newRun(types.BillingRunTypePackExceeded, now)

	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter:          types.NewNoLimitQueryFilter(),
		SubscriptionStatuses: []types.SubscriptionStatus{types.SubscriptionStatusActive},
		OverLimitOnly:        true,
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("starting pack-exceeded pass",
		"run_id", run.ID,
		"over_limit_subscriptions", len(subs))

	run.Outcomes = s.forEachSubscription(subs, func(sub *subscription.Subscription) billing.SubscriptionOutcome {
		return s.processOverage(ctx, sub)
	})
	run.CompletedAt = time.Now().UTC()

	result := &RenewalRunResult{
		RunID:        run.ID,
		SuccessCount: run.SuccessCount(),
		FailedCount:  run.FailedCount(),
	}

	s.Logger.Infow("completed pack-exceeded pass",
		"run_id", run.ID,
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount)

	return result, nil
}

func (s *billingService) processOverage(ctx context.Context, sub *subscription.Subscription) billing.SubscriptionOutcome {
	log := s.Logger.With("subscription_id", sub.ID, "run_type", types.BillingRunTypePackExceeded)

	overageUnits := sub.OverageUnits()
	if overageUnits <= 0 {
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true, Skipped: true, Reason: "not over limit"}
	}

	// One overage charge per subscription per period
	charged, err := s.AttemptRepo.HasSuccessful(ctx, sub.ID, types.BillingRunTypePackExceeded, sub.CurrentPeriodStart)
	if err != nil {
		return failedOutcome(sub.ID, err)
	}
	if charged {
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true, Skipped: true, Reason: "already charged"}
	}

	overagePrice, err := s.CatalogRepo.GetOveragePrice(ctx, sub.PackID)
	if err != nil {
		log.Errorw("failed to load overage price", "pack_id", sub.PackID, "error", err)
		return failedOutcome(sub.ID, err)
	}

	amount, err := s.priceService.ResolvePrice(ctx, overagePrice, PriceContext{Quantity: overageUnits})
	if err != nil {
		log.Errorw("failed to resolve overage price", "pack_id", sub.PackID, "error", err)
		return failedOutcome(sub.ID, err)
	}

	result, chargeErr := s.charge(ctx, sub.ID, amount,
		attemptIdempotencyKey(sub.ID, types.BillingRunTypePackExceeded, sub.CurrentPeriodStart))
	success := chargeErr == nil && result.Success

	s.recordAttempt(ctx, sub, types.BillingRunTypePackExceeded, sub.CurrentPeriodStart, amount, success, chargeErr, result)

	if !success {
		// Deliberate policy difference from base renewal failure: overage
		// failure is reported but never blocks service
		reason := chargeReason(chargeErr, result)
		log.Warnw("overage charge failed, subscription unaffected",
			"amount", amount,
			"overage_units", overageUnits,
			"reason", reason)
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: false, Reason: reason}
	}

	log.Infow("overage charged", "amount", amount, "overage_units", overageUnits)
	return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true}
}

func (s *billingService) ProcessRetries(ctx context.Context) (*RetryRunResult, error) {
	now := time.Now().UTC()
	run := s.newRun(types.BillingRunTypeRetry, now)

	subs, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		QueryFilter:          types.NewNoLimitQueryFilter(),
		SubscriptionStatuses: []types.SubscriptionStatus{types.SubscriptionStatusPastDue},
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("starting retry pass",
		"run_id", run.ID,
		"past_due_subscriptions", len(subs))

	run.Outcomes = s.forEachSubscription(subs, func(sub *subscription.Subscription) billing.SubscriptionOutcome {
		return s.processRetry(ctx, sub, now)
	})
	run.CompletedAt = time.Now().UTC()

	result := &RetryRunResult{
		RunID:     run.ID,
		Processed: len(run.Outcomes),
		Succeeded: run.SuccessCount(),
		Failed:    run.FailedCount(),
	}

	s.Logger.Infow("completed retry pass",
		"run_id", run.ID,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed)

	return result, nil
}

func (s *billingService) processRetry(ctx context.Context, sub *subscription.Subscription, now time.Time) billing.SubscriptionOutcome {
	log := s.Logger.With("subscription_id", sub.ID, "run_type", types.BillingRunTypeRetry)

	// Grace window elapsed without a successful charge
	if sub.GraceExpired(now) {
		sub.FinalizeCancellation(now)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return failedOutcome(sub.ID, err)
		}
		log.Infow("grace period expired, subscription canceled")
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: false, Reason: "grace period expired"}
	}

	// A permanent decline (expired card, closed account) cannot succeed on
	// retry; the subscription sits out the retry passes and the grace
	// expiry above resolves it
	permanent, err := s.AttemptRepo.HasPermanentFailure(ctx, sub.ID, sub.CurrentPeriodStart)
	if err != nil {
		return failedOutcome(sub.ID, err)
	}
	if permanent {
		log.Warnw("previous decline was permanent, skipping retry")
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: false, Skipped: true, Reason: "permanent decline"}
	}

	maxAttempts, err := s.lifecycleConfig.GetMaxRetryAttempts(ctx, sub.TenantID, sub.EnvironmentID)
	if err != nil {
		maxAttempts = s.Config.Billing.MaxRetryAttempts
	}
	attempts, err := s.AttemptRepo.CountAttempts(ctx, sub.ID, types.BillingRunTypeRetry, sub.CurrentPeriodStart)
	if err != nil {
		return failedOutcome(sub.ID, err)
	}
	if maxAttempts > 0 && attempts >= maxAttempts {
		log.Warnw("retry ceiling reached, leaving subscription in grace window",
			"attempts", attempts,
			"max_attempts", maxAttempts)
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: false, Skipped: true, Reason: "retry ceiling reached"}
	}

	pack, err := s.CatalogRepo.GetPricedEntity(ctx, sub.PackID)
	if err != nil {
		return failedOutcome(sub.ID, err)
	}

	amount, err := s.priceService.ResolvePrice(ctx, pack, PriceContext{})
	if err != nil {
		return failedOutcome(sub.ID, err)
	}

	result, chargeErr := s.charge(ctx, sub.ID, amount,
		retryIdempotencyKey(sub.ID, sub.CurrentPeriodStart, attempts+1))
	success := chargeErr == nil && result.Success

	s.recordAttempt(ctx, sub, types.BillingRunTypeRetry, sub.CurrentPeriodStart, amount, success, chargeErr, result)

	if !success {
		reason := chargeReason(chargeErr, result)
		log.Infow("retry charge failed", "amount", amount, "reason", reason)
		return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: false, Reason: reason}
	}

	if err := sub.RestoreActive(); err != nil {
		return failedOutcome(sub.ID, err)
	}
	if result.ExternalStatus != "" {
		sub.PaymentStatus = &result.ExternalStatus
	}
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return failedOutcome(sub.ID, err)
	}

	log.Infow("retry charge succeeded, subscription restored", "amount", amount)
	return billing.SubscriptionOutcome{SubscriptionID: sub.ID, Success: true}
}

// forEachSubscription fans the work out over a bounded pool; each
// subscription's outcome is independent of its siblings
func (s *billingService) forEachSubscription(subs []*subscription.Subscription, fn func(*subscription.Subscription) billing.SubscriptionOutcome) []billing.SubscriptionOutcome {
	workers := s.Config.Billing.WorkerCount
	if workers <= 0 {
		workers = 1
	}

	p := pool.NewWithResults[billing.SubscriptionOutcome]().WithMaxGoroutines(workers)
	for _, sub := range subs {
		sub := sub
		p.Go(func() billing.SubscriptionOutcome {
			return fn(sub)
		})
	}
	return p.Wait()
}

// attemptIdempotencyKey identifies one logical billing attempt; the ledger
// and the processor both dedupe on it, so distinct periods or run types can
// never collapse onto one processor-side charge
func attemptIdempotencyKey(subscriptionID string, runType types.BillingRunType, periodStart time.Time) string {
	return idempotency.GenerateKey(idempotency.ScopeBillingAttempt, map[string]interface{}{
		"subscription_id": subscriptionID,
		"run_type":        runType,
		"period_start":    periodStart.UTC().Format(time.RFC3339),
	})
}

// retryIdempotencyKey adds the attempt ordinal so each retry reaches the
// processor as a fresh request instead of replaying the first decline, while
// a crashed re-run of the same ordinal still dedupes
func retryIdempotencyKey(subscriptionID string, periodStart time.Time, ordinal int) string {
	return idempotency.GenerateKey(idempotency.ScopeBillingAttempt, map[string]interface{}{
		"subscription_id": subscriptionID,
		"run_type":        types.BillingRunTypeRetry,
		"period_start":    periodStart.UTC().Format(time.RFC3339),
		"attempt":         ordinal,
	})
}

// charge invokes the payment processor under the configured per-call
// timeout; a timed-out call is a failure, never left ambiguous
func (s *billingService) charge(ctx context.Context, subscriptionID string, amount decimal.Decimal, idempotencyKey string) (*payment.ChargeResult, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.ChargeTimeout)
	defer cancel()

	result, err := s.PaymentProcessor.Charge(chargeCtx, subscriptionID, amount, idempotencyKey)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Payment processor charge failed").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": subscriptionID,
				"amount":          amount.String(),
			}).
			Mark(ierr.ErrIntegration)
	}
	return result, nil
}

func (s *billingService) recordAttempt(ctx context.Context, sub *subscription.Subscription, runType types.BillingRunType, periodStart time.Time, amount decimal.Decimal, success bool, chargeErr error, result *payment.ChargeResult) {
	attempt := &billing.Attempt{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_ATTEMPT),
		IdempotencyKey: attemptIdempotencyKey(sub.ID, runType, periodStart),
		SubscriptionID: sub.ID,
		RunType:        runType,
		PeriodStart:    periodStart.UTC(),
		Amount:         amount,
		Success:        success,
		FailureReason:  chargeReason(chargeErr, result),
		Permanent:      !success && result != nil && result.Permanent,
		CreatedAt:      time.Now().UTC(),
		TenantID:       sub.TenantID,
		EnvironmentID:  sub.EnvironmentID,
	}
	if success {
		attempt.FailureReason = ""
	}

	// Ledger writes are best-effort for failed attempts; a missed failure
	// record only affects the retry ceiling, never correctness of charging
	if err := s.AttemptRepo.Create(ctx, attempt); err != nil && !ierr.IsAlreadyExists(err) {
		s.Logger.Errorw("failed to record billing attempt",
			"subscription_id", sub.ID,
			"run_type", runType,
			"error", err)
	}
}

func (s *billingService) newRun(runType types.BillingRunType, now time.Time) *billing.BillingRun {
	return &billing.BillingRun{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_RUN),
		RunType:   runType,
		StartedAt: now,
	}
}

func failedOutcome(subscriptionID string, err error) billing.SubscriptionOutcome {
	return billing.SubscriptionOutcome{
		SubscriptionID: subscriptionID,
		Success:        false,
		Reason:         err.Error(),
	}
}

func chargeReason(chargeErr error, result *payment.ChargeResult) string {
	if chargeErr != nil {
		return chargeErr.Error()
	}
	if result != nil && !result.Success {
		if result.FailureReason != "" {
			return result.FailureReason
		}
		return "charge declined"
	}
	return ""
}
