package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/service"
)

// BillingCronHandler exposes the billing passes as HTTP triggers so an
// external scheduler or an operator can force a run alongside the in-process
// cron
type BillingCronHandler struct {
	billingService service.BillingService
	logger         *logger.Logger
}

func NewBillingCronHandler(
	billingService service.BillingService,
	logger *logger.Logger,
) *BillingCronHandler {
	return &BillingCronHandler{
		billingService: billingService,
		logger:         logger,
	}
}

// TriggerRenewals runs the monthly renewal pass followed by the
// pack-exceeded pass
func (h *BillingCronHandler) TriggerRenewals(c *gin.Context) {
	h.logger.Infow("starting monthly billing cron job", "time", time.Now().UTC().Format(time.RFC3339))

	renewal, overage, err := h.billingService.RunMonthly(c.Request.Context())
	if err != nil {
		h.logger.Errorw("monthly billing cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed monthly billing cron job")
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"renewal": renewal,
		"overage": overage,
	})
}

// TriggerRetries runs the retry pass for past-due subscriptions
func (h *BillingCronHandler) TriggerRetries(c *gin.Context) {
	h.logger.Infow("starting billing retry cron job", "time", time.Now().UTC().Format(time.RFC3339))

	result, err := h.billingService.ProcessRetries(c.Request.Context())
	if err != nil {
		h.logger.Errorw("billing retry cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed billing retry cron job")
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"result": result,
	})
}
