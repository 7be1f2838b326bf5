package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftly/craftly/internal/api/cron"
	v1 "github.com/craftly/craftly/internal/api/v1"
	"github.com/craftly/craftly/internal/config"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/rest/middleware"
	"github.com/craftly/craftly/internal/types"
)

// Handlers groups the HTTP handlers wired into the router
type Handlers struct {
	Subscription *v1.SubscriptionHandler
	Assignment   *v1.AssignmentHandler
	BillingCron  *cron.BillingCronHandler
}

// NewRouter builds the gin engine with the standard middleware chain and all
// routes registered
func NewRouter(handlers Handlers, cfg *config.Configuration, log *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode == types.RunModeServer {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.ContextMiddleware(),
		middleware.LoggingMiddleware(log),
		middleware.ErrorHandler(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := router.Group("/v1")
	{
		subscriptions := apiV1.Group("/subscriptions")
		{
			subscriptions.GET("", handlers.Subscription.ListSubscriptions)
			subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
			subscriptions.POST("/:id/usage", handlers.Subscription.RecordUsage)
			subscriptions.POST("/:id/pack-change", handlers.Subscription.SchedulePackChange)
			subscriptions.POST("/:id/pending-change/cancel", handlers.Subscription.CancelPendingChange)
			subscriptions.POST("/:id/unsubscribe", handlers.Subscription.Unsubscribe)
		}

		apiV1.POST("/assignments/vendors", handlers.Assignment.AssignVendors)
	}

	cronGroup := router.Group("/cron")
	{
		cronGroup.POST("/billing/renewals", handlers.BillingCron.TriggerRenewals)
		cronGroup.POST("/billing/retries", handlers.BillingCron.TriggerRetries)
	}

	return router
}
