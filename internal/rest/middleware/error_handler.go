package middleware

import (
	"github.com/gin-gonic/gin"

	ierr "github.com/craftly/craftly/internal/errors"
)

// ErrorHandler converts errors attached to the gin context into the
// classified JSON error response. Handlers report failures with c.Error and
// never build error bodies themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		c.AbortWithStatusJSON(ierr.HTTPStatusFromErr(err), ierr.NewErrorResponse(err))
	}
}
