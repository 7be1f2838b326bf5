package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/craftly/craftly/internal/cache"
	"github.com/craftly/craftly/internal/config"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/service"
	"github.com/craftly/craftly/internal/testutil"
)

type BillingSchedulerSuite struct {
	suite.Suite
	cfg       *config.Configuration
	scheduler *BillingScheduler
}

func TestBillingScheduler(t *testing.T) {
	suite.Run(t, new(BillingSchedulerSuite))
}

func (s *BillingSchedulerSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	log := logger.GetLogger()

	billingService := service.NewBillingService(service.ServiceParams{
		Logger:              log,
		Config:              s.cfg,
		Cache:               cache.NewInMemoryCache(),
		SubRepo:             testutil.NewInMemorySubscriptionStore(),
		LifecycleConfigRepo: testutil.NewInMemoryLifecycleConfigStore(),
		CatalogRepo:         testutil.NewInMemoryCatalogStore(),
		AttemptRepo:         testutil.NewInMemoryAttemptStore(),
		PaymentProcessor:    testutil.NewMockPaymentProcessor(),
	})
	s.scheduler = NewBillingScheduler(billingService, s.cfg, log)
}

func (s *BillingSchedulerSuite) TestStartAndStop() {
	s.NoError(s.scheduler.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.scheduler.Stop(ctx))
}

func (s *BillingSchedulerSuite) TestDoubleStart() {
	s.NoError(s.scheduler.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.scheduler.Stop(ctx)
	}()

	err := s.scheduler.Start()
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *BillingSchedulerSuite) TestRestartAfterStop() {
	s.NoError(s.scheduler.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.scheduler.Stop(ctx))

	s.NoError(s.scheduler.Start())
	s.NoError(s.scheduler.Stop(ctx))
}

func (s *BillingSchedulerSuite) TestStopWithoutStart() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.NoError(s.scheduler.Stop(ctx))
}

func (s *BillingSchedulerSuite) TestInvalidCronSpec() {
	s.cfg.Billing.RenewalCronSpec = "not a cron spec"

	err := s.scheduler.Start()
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
