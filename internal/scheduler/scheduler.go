package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craftly/craftly/internal/config"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/service"
	"github.com/craftly/craftly/internal/types"
)

// BillingScheduler owns the time triggers that drive billing runs: the
// monthly renewal trigger (renewal pass followed by the pack-exceeded pass)
// and the 6-hourly retry trigger. A single instance is constructed by the
// process entry point and started once; Start and Stop are explicit
// lifecycle operations.
type BillingScheduler struct {
	billingService service.BillingService
	logger         *logger.Logger
	cfg            *config.Configuration

	cron    *cron.Cron
	started bool
}

func NewBillingScheduler(
	billingService service.BillingService,
	cfg *config.Configuration,
	log *logger.Logger,
) *BillingScheduler {
	return &BillingScheduler{
		billingService: billingService,
		logger:         log,
		cfg:            cfg,
	}
}

// Start registers the triggers and begins firing them. Calling Start on a
// running scheduler is an error; restart requires a Stop first.
func (s *BillingScheduler) Start() error {
	if s.started {
		return ierr.NewError("billing scheduler already started").
			WithHint("Stop the scheduler before starting it again").
			Mark(ierr.ErrInvalidOperation)
	}

	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(s.cfg.Billing.RenewalCronSpec, s.runMonthly); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid renewal cron spec").
			WithReportableDetails(map[string]interface{}{
				"spec": s.cfg.Billing.RenewalCronSpec,
			}).
			Mark(ierr.ErrValidation)
	}

	if _, err := c.AddFunc(s.cfg.Billing.RetryCronSpec, s.runRetries); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid retry cron spec").
			WithReportableDetails(map[string]interface{}{
				"spec": s.cfg.Billing.RetryCronSpec,
			}).
			Mark(ierr.ErrValidation)
	}

	c.Start()
	s.cron = c
	s.started = true

	s.logger.Infow("billing scheduler started",
		"renewal_spec", s.cfg.Billing.RenewalCronSpec,
		"retry_spec", s.cfg.Billing.RetryCronSpec)

	return nil
}

// Stop halts the triggers and waits for any in-flight run to finish
func (s *BillingScheduler) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.logger.Warnw("billing scheduler stop timed out with runs in flight")
		return ctx.Err()
	}

	s.started = false
	s.logger.Infow("billing scheduler stopped")
	return nil
}

func (s *BillingScheduler) runMonthly() {
	ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)

	renewal, overage, err := s.billingService.RunMonthly(ctx)
	if err != nil {
		s.logger.Errorw("monthly billing run failed", "error", err)
		return
	}

	s.logger.Infow("monthly billing run completed",
		"renewal_success", renewal.SuccessCount,
		"renewal_failed", renewal.FailedCount,
		"overage_success", overage.SuccessCount,
		"overage_failed", overage.FailedCount)
}

func (s *BillingScheduler) runRetries() {
	ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)

	result, err := s.billingService.ProcessRetries(ctx)
	if err != nil {
		s.logger.Errorw("retry billing run failed", "error", err)
		return
	}

	s.logger.Infow("retry billing run completed",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
}
