package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/craftly/craftly/internal/types"
)

const (
	headerRequestID     = "X-Request-ID"
	headerTenantID      = "X-Tenant-ID"
	headerEnvironmentID = "X-Environment-ID"
)

// ContextMiddleware propagates the request, tenant and environment
// identifiers from headers into the request context so services and the
// logger can pick them up
func ContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST)
		}
		ctx = types.SetRequestID(ctx, requestID)
		c.Header(headerRequestID, requestID)

		tenantID := c.GetHeader(headerTenantID)
		if tenantID == "" {
			tenantID = types.DefaultTenantID
		}
		ctx = types.SetTenantID(ctx, tenantID)

		if environmentID := c.GetHeader(headerEnvironmentID); environmentID != "" {
			ctx = types.SetEnvironmentID(ctx, environmentID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
