package testutil

import (
	"context"
	"sync"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
)

// InMemoryLifecycleConfigStore implements subscription.LifecycleConfigRepository
type InMemoryLifecycleConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*subscription.LifecycleConfig
	audits  []*subscription.LifecycleConfigAudit
}

func NewInMemoryLifecycleConfigStore() *InMemoryLifecycleConfigStore {
	return &InMemoryLifecycleConfigStore{
		configs: make(map[string]*subscription.LifecycleConfig),
	}
}

func configKey(tenantID, environmentID, key string) string {
	return tenantID + ":" + environmentID + ":" + key
}

func (s *InMemoryLifecycleConfigStore) GetConfig(_ context.Context, tenantID, environmentID, key string) (*subscription.LifecycleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, exists := s.configs[configKey(tenantID, environmentID, key)]
	if !exists {
		return nil, ierr.NewError("lifecycle config not found").
			WithHint("No value configured for this key").
			WithReportableDetails(map[string]interface{}{
				"key": key,
			}).
			Mark(ierr.ErrNotFound)
	}
	copied := *config
	return &copied, nil
}

func (s *InMemoryLifecycleConfigStore) SetConfig(_ context.Context, config *subscription.LifecycleConfig) error {
	if config == nil {
		return ierr.NewError("lifecycle config cannot be nil").
			WithHint("Lifecycle config cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *config
	s.configs[configKey(config.TenantID, config.EnvironmentID, config.Key)] = &copied
	return nil
}

func (s *InMemoryLifecycleConfigStore) CreateConfigAudit(_ context.Context, audit *subscription.LifecycleConfigAudit) error {
	if audit == nil {
		return ierr.NewError("lifecycle config audit cannot be nil").
			WithHint("Lifecycle config audit cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *audit
	s.audits = append(s.audits, &copied)
	return nil
}

// Audits returns a snapshot of recorded audits in insertion order
func (s *InMemoryLifecycleConfigStore) Audits() []*subscription.LifecycleConfigAudit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.LifecycleConfigAudit, 0, len(s.audits))
	for _, a := range s.audits {
		copied := *a
		result = append(result, &copied)
	}
	return result
}
