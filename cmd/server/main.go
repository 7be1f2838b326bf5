package main

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/craftly/craftly/internal/api/cron"
	v1 "github.com/craftly/craftly/internal/api/v1"
	"github.com/craftly/craftly/internal/cache"
	"github.com/craftly/craftly/internal/config"
	"github.com/craftly/craftly/internal/domain/billing"
	"github.com/craftly/craftly/internal/domain/catalog"
	"github.com/craftly/craftly/internal/domain/payment"
	"github.com/craftly/craftly/internal/domain/subscription"
	"github.com/craftly/craftly/internal/integration/payhub"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/repository/postgres"
	"github.com/craftly/craftly/internal/rest"
	"github.com/craftly/craftly/internal/scheduler"
	"github.com/craftly/craftly/internal/service"
)

func main() {
	fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			cache.NewInMemoryCache,
			postgres.NewDB,

			// repositories
			func(db *sql.DB, log *logger.Logger) subscription.Repository {
				return postgres.NewSubscriptionRepository(db, log)
			},
			func(db *sql.DB, log *logger.Logger) subscription.LifecycleConfigRepository {
				return postgres.NewLifecycleConfigRepository(db, log)
			},
			func(db *sql.DB, log *logger.Logger) catalog.Repository {
				return postgres.NewCatalogRepository(db, log)
			},
			func(db *sql.DB, log *logger.Logger) billing.AttemptRepository {
				return postgres.NewBillingAttemptRepository(db, log)
			},

			// integrations
			payhub.NewClient,

			newServiceParams,

			// services
			service.NewPriceService,
			service.NewSubscriptionService,
			service.NewUsageService,
			service.NewAssignmentService,
			service.NewBillingService,

			// handlers and transport
			v1.NewSubscriptionHandler,
			v1.NewAssignmentHandler,
			cron.NewBillingCronHandler,
			newRouter,

			scheduler.NewBillingScheduler,
		),
		fx.Invoke(startServer),
	).Run()
}

func newServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	c cache.Cache,
	subRepo subscription.Repository,
	lifecycleConfigRepo subscription.LifecycleConfigRepository,
	catalogRepo catalog.Repository,
	attemptRepo billing.AttemptRepository,
	processor payment.Processor,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:              log,
		Config:              cfg,
		Cache:               c,
		SubRepo:             subRepo,
		LifecycleConfigRepo: lifecycleConfigRepo,
		CatalogRepo:         catalogRepo,
		AttemptRepo:         attemptRepo,
		PaymentProcessor:    processor,
	}
}

func newRouter(
	subscriptionHandler *v1.SubscriptionHandler,
	assignmentHandler *v1.AssignmentHandler,
	billingCronHandler *cron.BillingCronHandler,
	cfg *config.Configuration,
	log *logger.Logger,
) *gin.Engine {
	return rest.NewRouter(rest.Handlers{
		Subscription: subscriptionHandler,
		Assignment:   assignmentHandler,
		BillingCron:  billingCronHandler,
	}, cfg, log)
}

func startServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	sched *scheduler.BillingScheduler,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sched.Start(); err != nil {
				return err
			}
			log.Infow("starting server", "address", cfg.Server.Address, "mode", cfg.Deployment.Mode)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			if err := sched.Stop(ctx); err != nil {
				log.Errorw("failed to stop billing scheduler", "error", err)
			}
			return srv.Shutdown(ctx)
		},
	})
}
