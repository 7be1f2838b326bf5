package testutil

import (
	"context"

	"github.com/craftly/craftly/internal/types"
)

const (
	TestTenantID      = "tenant_test"
	TestEnvironmentID = "env_test"
	TestUserID        = "user_test"
)

// SetupContext returns a context carrying the identifiers tests run under
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetTenantID(ctx, TestTenantID)
	ctx = types.SetEnvironmentID(ctx, TestEnvironmentID)
	ctx = types.SetUserID(ctx, TestUserID)
	return ctx
}
