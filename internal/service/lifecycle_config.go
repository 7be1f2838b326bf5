package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

const (
	// Cache keys
	cacheKeyGracePeriod = "subscription:lifecycle:grace_period:%s:%s"
	cacheKeyRetryCap    = "subscription:lifecycle:retry_cap:%s:%s"

	// Cache TTL
	configCacheTTL = 1 * time.Hour
)

// LifecycleConfigService serves the billing policy values (grace window,
// retry ceiling) that the scheduler consults; values are tenant-scoped with
// process-level defaults from configuration
type LifecycleConfigService struct {
	ServiceParams
}

func NewLifecycleConfigService(params ServiceParams) *LifecycleConfigService {
	return &LifecycleConfigService{
		ServiceParams: params,
	}
}

// GetGracePeriodDays returns the grace window length in days
func (s *LifecycleConfigService) GetGracePeriodDays(ctx context.Context, tenantID, environmentID string) (int, error) {
	return s.getIntConfig(ctx, tenantID, environmentID,
		subscription.ConfigKeyGracePeriodDays, cacheKeyGracePeriod,
		s.Config.Billing.GracePeriodDays)
}

// SetGracePeriodDays sets the grace window length in days
func (s *LifecycleConfigService) SetGracePeriodDays(ctx context.Context, tenantID, environmentID string, days int, userID string) error {
	if days < 0 {
		return ierr.NewError("grace period days cannot be negative").
			WithHint("Grace period must be 0 or greater").
			Mark(ierr.ErrValidation)
	}
	return s.setIntConfig(ctx, tenantID, environmentID,
		subscription.ConfigKeyGracePeriodDays, cacheKeyGracePeriod, days, userID)
}

// GetMaxRetryAttempts returns the charge retry ceiling per period
func (s *LifecycleConfigService) GetMaxRetryAttempts(ctx context.Context, tenantID, environmentID string) (int, error) {
	return s.getIntConfig(ctx, tenantID, environmentID,
		subscription.ConfigKeyMaxRetryAttempts, cacheKeyRetryCap,
		s.Config.Billing.MaxRetryAttempts)
}

// SetMaxRetryAttempts sets the charge retry ceiling per period
func (s *LifecycleConfigService) SetMaxRetryAttempts(ctx context.Context, tenantID, environmentID string, attempts int, userID string) error {
	if attempts < 0 {
		return ierr.NewError("max retry attempts cannot be negative").
			WithHint("Retry ceiling must be 0 or greater").
			Mark(ierr.ErrValidation)
	}
	return s.setIntConfig(ctx, tenantID, environmentID,
		subscription.ConfigKeyMaxRetryAttempts, cacheKeyRetryCap, attempts, userID)
}

func (s *LifecycleConfigService) getIntConfig(ctx context.Context, tenantID, environmentID, key, cacheKeyFormat string, fallback int) (int, error) {
	// Try cache first
	cacheKey := getCacheKey(cacheKeyFormat, tenantID, environmentID)
	val, found := s.Cache.Get(ctx, cacheKey)
	if found && val != nil {
		if strVal, ok := val.(string); ok {
			if parsed, err := strconv.Atoi(strVal); err == nil {
				return parsed, nil
			}
		}
	}

	config, err := s.LifecycleConfigRepo.GetConfig(ctx, tenantID, environmentID, key)
	if err != nil {
		if ierr.IsNotFound(err) {
			return fallback, nil
		}
		return 0, err
	}

	parsed, err := strconv.Atoi(config.Value)
	if err != nil {
		return 0, ierr.NewErrorf("invalid %s value in config", key).
			WithHint("Config value must be a valid integer").
			Mark(ierr.ErrValidation)
	}

	s.Cache.Set(ctx, cacheKey, config.Value, configCacheTTL)

	return parsed, nil
}

func (s *LifecycleConfigService) setIntConfig(ctx context.Context, tenantID, environmentID, key, cacheKeyFormat string, value int, userID string) error {
	// Get existing config if any
	var previousValue string
	existingConfig, err := s.LifecycleConfigRepo.GetConfig(ctx, tenantID, environmentID, key)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}
	if existingConfig != nil {
		previousValue = existingConfig.Value
	}

	config := &subscription.LifecycleConfig{
		TenantID:      tenantID,
		EnvironmentID: environmentID,
		Key:           key,
		Value:         strconv.Itoa(value),
		UpdatedAt:     time.Now().UTC(),
		UpdatedBy:     userID,
		Status:        string(types.StatusPublished),
	}

	if existingConfig == nil {
		config.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LIFECYCLE_CONFIG)
		config.CreatedAt = config.UpdatedAt
		config.CreatedBy = userID
	} else {
		config.ID = existingConfig.ID
		config.CreatedAt = existingConfig.CreatedAt
		config.CreatedBy = existingConfig.CreatedBy
	}

	if err := s.LifecycleConfigRepo.SetConfig(ctx, config); err != nil {
		return err
	}

	audit := &subscription.LifecycleConfigAudit{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CONFIG_AUDIT),
		TenantID:      tenantID,
		EnvironmentID: environmentID,
		ConfigID:      config.ID,
		Key:           config.Key,
		PreviousValue: previousValue,
		NewValue:      config.Value,
		ChangedAt:     time.Now().UTC(),
		ChangedBy:     userID,
	}

	if err := s.LifecycleConfigRepo.CreateConfigAudit(ctx, audit); err != nil {
		return err
	}

	// Invalidate cache
	s.Cache.Delete(ctx, getCacheKey(cacheKeyFormat, tenantID, environmentID))

	return nil
}

// Helper function to generate cache keys
func getCacheKey(format, tenantID, environmentID string) string {
	return fmt.Sprintf(format, tenantID, environmentID)
}
