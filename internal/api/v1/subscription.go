package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftly/craftly/internal/api/dto"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/service"
)

// SubscriptionHandler serves the subscription lifecycle endpoints used by
// the admin surface
type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	usageService        service.UsageService
}

func NewSubscriptionHandler(
	subscriptionService service.SubscriptionService,
	usageService service.UsageService,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		usageService:        usageService,
	}
}

// GetSubscription retrieves a subscription by ID
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	sub, err := h.subscriptionService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.SubscriptionResponseFromDomain(sub))
}

// ListSubscriptions lists subscriptions matching the query parameters
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var req dto.ListSubscriptionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	subs, err := h.subscriptionService.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ListSubscriptionsResponseFromDomain(subs))
}

// RecordUsage reports consumed service units for a subscription
func (h *SubscriptionHandler) RecordUsage(c *gin.Context) {
	var req dto.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	subscriptionID := c.Param("id")
	if _, err := h.usageService.RecordUsage(c.Request.Context(), subscriptionID, req.Units); err != nil {
		c.Error(err)
		return
	}

	sub, err := h.subscriptionService.Get(c.Request.Context(), subscriptionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.RecordUsageResponse{
		SubscriptionID: sub.ID,
		UnitsUsed:      sub.TotalUnitsUsed,
		UnitsIncluded:  sub.TotalUnitsIncluded,
		OverLimit:      sub.IsOverLimit(),
	})
}

// SchedulePackChange schedules an upgrade or downgrade effective at the next
// period start
func (h *SubscriptionHandler) SchedulePackChange(c *gin.Context) {
	var req dto.SchedulePackChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	sub, err := h.subscriptionService.SchedulePackChange(c.Request.Context(), c.Param("id"), req.PackID, req.ChangeType)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.SubscriptionResponseFromDomain(sub))
}

// CancelPendingChange clears a scheduled vendor or pack change
func (h *SubscriptionHandler) CancelPendingChange(c *gin.Context) {
	sub, err := h.subscriptionService.CancelPendingVendorChange(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.SubscriptionResponseFromDomain(sub))
}

// Unsubscribe soft-cancels the subscription at the end of the paid period
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	sub, err := h.subscriptionService.Unsubscribe(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.SubscriptionResponseFromDomain(sub))
}
