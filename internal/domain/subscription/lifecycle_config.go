package subscription

import (
	"context"
	"time"
)

// LifecycleConfig holds a tenant-scoped billing policy value, e.g. the grace
// window length or the retry attempt ceiling
type LifecycleConfig struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	EnvironmentID string    `json:"environment_id"`
	Key           string    `json:"key"`   // e.g. "grace_period_days", "max_retry_attempts"
	Value         string    `json:"value"` // String representation of the value
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by"`
	UpdatedAt     time.Time `json:"updated_at"`
	UpdatedBy     string    `json:"updated_by"`
	Status        string    `json:"status"`
}

// LifecycleConfigAudit records one policy change for traceability
type LifecycleConfigAudit struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	EnvironmentID string    `json:"environment_id"`
	ConfigID      string    `json:"config_id"`
	Key           string    `json:"key"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
	ChangedAt     time.Time `json:"changed_at"`
	ChangedBy     string    `json:"changed_by"`
}

const (
	// Configuration keys
	ConfigKeyGracePeriodDays  = "grace_period_days"
	ConfigKeyMaxRetryAttempts = "max_retry_attempts"
)

// LifecycleConfigRepository persists billing policy values and their audits
type LifecycleConfigRepository interface {
	GetConfig(ctx context.Context, tenantID, environmentID, key string) (*LifecycleConfig, error)
	SetConfig(ctx context.Context, config *LifecycleConfig) error
	CreateConfigAudit(ctx context.Context, audit *LifecycleConfigAudit) error
}
