package service

import (
	"github.com/craftly/craftly/internal/cache"
	"github.com/craftly/craftly/internal/config"
	"github.com/craftly/craftly/internal/domain/billing"
	"github.com/craftly/craftly/internal/domain/catalog"
	"github.com/craftly/craftly/internal/domain/payment"
	"github.com/craftly/craftly/internal/domain/subscription"
	"github.com/craftly/craftly/internal/logger"
)

// ServiceParams bundles the dependencies shared by all services so that
// constructors stay short and wiring lives in one place
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Cache  cache.Cache

	SubRepo             subscription.Repository
	LifecycleConfigRepo subscription.LifecycleConfigRepository
	CatalogRepo         catalog.Repository
	AttemptRepo         billing.AttemptRepository

	PaymentProcessor payment.Processor
}
