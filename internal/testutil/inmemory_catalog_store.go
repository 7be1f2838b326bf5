package testutil

import (
	"context"
	"sync"

	"github.com/craftly/craftly/internal/domain/catalog"
	ierr "github.com/craftly/craftly/internal/errors"
)

// InMemoryCatalogStore implements catalog.Repository. Tests seed it with
// priced entities and overage price mappings up front; the billing core only
// ever reads from it.
type InMemoryCatalogStore struct {
	*InMemoryStore[*catalog.PricedEntity]

	mu sync.RWMutex
	// overagePrices maps a pack ID to the priced entity used for usage
	// beyond its included units
	overagePrices map[string]string
}

func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	return &InMemoryCatalogStore{
		InMemoryStore: NewInMemoryStore[*catalog.PricedEntity](),
		overagePrices: make(map[string]string),
	}
}

func copyPricedEntity(e *catalog.PricedEntity) *catalog.PricedEntity {
	if e == nil {
		return nil
	}

	copied := *e
	if e.BasePrice != nil {
		price := *e.BasePrice
		copied.BasePrice = &price
	}
	if e.Tiers != nil {
		copied.Tiers = make([]catalog.PricingTier, len(e.Tiers))
		copy(copied.Tiers, e.Tiers)
	}
	return &copied
}

// AddPricedEntity seeds a catalog record
func (s *InMemoryCatalogStore) AddPricedEntity(ctx context.Context, entity *catalog.PricedEntity) error {
	if entity == nil {
		return ierr.NewError("priced entity cannot be nil").
			WithHint("Priced entity cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, entity.ID, copyPricedEntity(entity))
}

// SetOveragePrice links a pack to the priced entity billed for its overage
func (s *InMemoryCatalogStore) SetOveragePrice(packID, priceEntityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overagePrices[packID] = priceEntityID
}

func (s *InMemoryCatalogStore) GetPricedEntity(ctx context.Context, id string) (*catalog.PricedEntity, error) {
	entity, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("priced entity not found").
			WithHint("Priced entity not found").
			WithReportableDetails(map[string]interface{}{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copyPricedEntity(entity), nil
}

func (s *InMemoryCatalogStore) GetOveragePrice(ctx context.Context, packID string) (*catalog.PricedEntity, error) {
	s.mu.RLock()
	priceEntityID, exists := s.overagePrices[packID]
	s.mu.RUnlock()

	if !exists {
		return nil, ierr.NewError("no overage price configured for pack").
			WithHint("Packs that bill overage need an overage price mapping").
			WithReportableDetails(map[string]interface{}{
				"pack_id": packID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return s.GetPricedEntity(ctx, priceEntityID)
}
