package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftly/craftly/internal/api/dto"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/service"
)

// AssignmentHandler serves bulk vendor assignment
type AssignmentHandler struct {
	assignmentService service.AssignmentService
}

func NewAssignmentHandler(assignmentService service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
	}
}

// AssignVendors assigns a vendor to the given subscriptions, immediately or
// effective at the next period start
func (h *AssignmentHandler) AssignVendors(c *gin.Context) {
	var req dto.AssignVendorRequest
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

	result, err := h.assignmentService.AssignVendors(c.Request.Context(), req.SubscriptionIDs, req.VendorID, req.AssignmentType)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
